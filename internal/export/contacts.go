package export

import (
	"context"
	"strings"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

var vcardEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

func escapeText(s string) string { return vcardEscaper.Replace(s) }

// VCard renders c as a vCard 3.0 record with CRLF line endings.
func VCard(c ibex.Contact) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCARD")
	line("VERSION:3.0")
	line("N:" + escapeText(c.LastName) + ";" + escapeText(c.FirstName) + ";;;")
	line("FN:" + escapeText(c.FullName()))
	if c.Organization != "" {
		line("ORG:" + escapeText(c.Organization))
	}
	for _, p := range c.Phones {
		line("TEL;TYPE=CELL:" + escapeText(p))
	}
	for _, e := range c.Emails {
		line("EMAIL:" + escapeText(e))
	}
	if c.Note != "" {
		line("NOTE:" + escapeText(c.Note))
	}
	line("END:VCARD")
	return b.String()
}

// Contacts writes one .vcf file per contact, named after its display name.
func Contacts(ctx context.Context, contacts []ibex.Contact, s ibex.Sink, opts ...Option) (Result, error) {
	return perItem(ctx, buildOptions(opts), s, contacts,
		func(c ibex.Contact) string { return FileName(c.DisplayName(), ".vcf") },
		VCard)
}

// ContactsSingle writes every contact into one file called name.
func ContactsSingle(ctx context.Context, contacts []ibex.Contact, s ibex.Sink, name string, opts ...Option) (Result, error) {
	if len(contacts) == 0 {
		return Result{}, ibex.ErrNothingToExport
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var b strings.Builder
	for _, c := range contacts {
		b.WriteString(VCard(c))
	}
	if err := writeString(s, name, b.String()); err != nil {
		buildOptions(opts).logger.Error("contacts export failed", "name", name, "error", err)
		return Result{Failed: len(contacts)}, err
	}
	return Result{Exported: len(contacts)}, nil
}
