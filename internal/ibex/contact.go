package ibex

import "strings"

// Contact is one address book person.
type Contact struct {
	ID           int64
	FirstName    string
	LastName     string
	Organization string
	Phones       []string
	Emails       []string
	Note         string
}

// FullName joins the non-empty name parts, falling back to the organization
// and then to Unknown.
func (c *Contact) FullName() string {
	var parts []string
	for _, p := range []string{c.FirstName, c.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if c.Organization != "" {
		return c.Organization
	}
	return Unknown
}

// DisplayName is the name contacts are listed and sorted by.
func (c *Contact) DisplayName() string {
	return c.FullName()
}

func (c *Contact) PrimaryPhone() string {
	if len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0]
}

func (c *Contact) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}
