package extract

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
)

// Multi-value property codes in the address book.
const (
	propertyPhone = 3
	propertyEmail = 4
)

// Contacts reads the address book.
type Contacts struct {
	store    store
	contacts lazy[ibex.Contact]
}

// NewContacts returns a contacts extractor over index.
func NewContacts(index ibex.Index, opts ...Option) *Contacts {
	o := buildOptions(opts)
	return &Contacts{store: newStore("contacts", index, o, locate.Contacts)}
}

// All returns every contact sorted case-insensitively by display name.
// Phone numbers and emails keep table order and are not de-duplicated.
func (c *Contacts) All(ctx context.Context) []ibex.Contact {
	return c.contacts.get(ctx, func(ctx context.Context) []ibex.Contact {
		contacts := load(ctx, c.store, []probe[ibex.Contact]{
			{name: "ABPerson", run: readContacts},
		})
		sort.SliceStable(contacts, func(i, j int) bool {
			return strings.ToLower(contacts[i].DisplayName()) < strings.ToLower(contacts[j].DisplayName())
		})
		return contacts
	})
}

func readContacts(ctx context.Context, db *sql.DB) ([]ibex.Contact, error) {
	rows, err := db.QueryContext(ctx, `SELECT ROWID, First, Last, Organization, Note FROM ABPerson`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []ibex.Contact
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id                     int64
			first, last, org, note sql.NullString
		)
		if err := rows.Scan(&id, &first, &last, &org, &note); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		index[id] = len(contacts)
		contacts = append(contacts, ibex.Contact{
			ID:           id,
			FirstName:    first.String,
			LastName:     last.String,
			Organization: org.String,
			Note:         note.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	values, err := db.QueryContext(ctx, `
		SELECT record_id, property, value
		FROM ABMultiValue
		WHERE property IN (3, 4)
		ORDER BY ROWID`)
	if err != nil {
		return nil, err
	}
	defer values.Close()

	for values.Next() {
		var (
			recordID, property sql.NullInt64
			value              sql.NullString
		)
		if err := values.Scan(&recordID, &property, &value); err != nil {
			return nil, fmt.Errorf("scanning multi-value: %w", err)
		}
		i, ok := index[recordID.Int64]
		if !ok || !value.Valid {
			continue
		}
		switch property.Int64 {
		case propertyPhone:
			contacts[i].Phones = append(contacts[i].Phones, value.String)
		case propertyEmail:
			contacts[i].Emails = append(contacts[i].Emails, value.String)
		}
	}
	if err := values.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

// ContactStats summarises the address book.
type ContactStats struct {
	Total      int
	WithPhones int
	WithEmails int
}

// Stats summarises All.
func (c *Contacts) Stats(ctx context.Context) ContactStats {
	var s ContactStats
	for _, contact := range c.All(ctx) {
		s.Total++
		if len(contact.Phones) > 0 {
			s.WithPhones++
		}
		if len(contact.Emails) > 0 {
			s.WithEmails++
		}
	}
	return s
}
