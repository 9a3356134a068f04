package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/sink"
)

func TestTranscript(t *testing.T) {
	chat := ibex.Chat{
		DisplayName: "Family",
		Messages: []ibex.Message{
			{Text: "hello", Date: time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC), Handle: "+15550100"},
			{Text: "hi back", Date: time.Date(2024, 2, 1, 8, 31, 5, 0, time.UTC), IsFromMe: true},
			{Text: "no handle"},
		},
	}

	want := "Chat with: Family\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"[2024-02-01 08:30:00] +15550100:\n  hello\n\n" +
		"[2024-02-01 08:31:05] Me:\n  hi back\n\n" +
		"[] Family:\n  no handle\n\n"

	if got := Transcript(chat, WithLocation(time.UTC)); got != want {
		t.Errorf("Transcript() =\n%s\nwant\n%s", got, want)
	}
}

func TestTranscript_Location(t *testing.T) {
	chat := ibex.Chat{
		DisplayName: "x",
		Messages:    []ibex.Message{{Text: "t", Date: time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC), IsFromMe: true}},
	}
	tokyo := time.FixedZone("JST", 9*60*60)
	if got := Transcript(chat, WithLocation(tokyo)); !strings.Contains(got, "[2024-02-01 17:30:00] Me:") {
		t.Errorf("Transcript() in JST =\n%s", got)
	}
}

func TestMessages(t *testing.T) {
	out := sink.NewMemorySink("out")
	chats := []ibex.Chat{
		{DisplayName: "+1 (555) 0100", Messages: []ibex.Message{{Text: "a"}}},
		{DisplayName: "empty"},
		{DisplayName: "jo@example.com", Messages: []ibex.Message{{Text: "b"}}},
	}

	res, err := Messages(context.Background(), chats, out)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if res.Exported != 2 {
		t.Errorf("Exported = %d, want 2", res.Exported)
	}
	want := []string{"+1 555 0100.txt", "jo@example.com.txt"}
	got := out.Names()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestMessages_AllEmpty(t *testing.T) {
	out := sink.NewMemorySink("out")
	_, err := Messages(context.Background(), []ibex.Chat{{DisplayName: "empty"}}, out)
	if !errors.Is(err, ibex.ErrNothingToExport) {
		t.Errorf("Messages() error = %v, want ErrNothingToExport", err)
	}
}

func TestNoteText(t *testing.T) {
	n := ibex.Note{
		Title:    "Groceries",
		Content:  "milk\neggs",
		Created:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Modified: time.Date(2024, 3, 2, 18, 45, 0, 0, time.UTC),
	}
	want := "Groceries\n" +
		"=========\n" +
		"\n" +
		"Created: 2024-03-01 09:00\n" +
		"Modified: 2024-03-02 18:45\n" +
		"\n" +
		strings.Repeat("-", 50) + "\n" +
		"\n" +
		"milk\neggs\n"

	if got := NoteText(n, WithLocation(time.UTC)); got != want {
		t.Errorf("NoteText() =\n%s\nwant\n%s", got, want)
	}
}

func TestNoteText_UnderlineCountsRunes(t *testing.T) {
	got := NoteText(ibex.Note{Title: "Café"}, WithLocation(time.UTC))
	if !strings.HasPrefix(got, "Café\n====\n") {
		t.Errorf("NoteText() = %q", got)
	}
	if !strings.Contains(got, "Created: \nModified: \n") {
		t.Errorf("zero dates not blank: %q", got)
	}
}

func TestNotes(t *testing.T) {
	out := sink.NewMemorySink("out")
	notes := []ibex.Note{
		{Title: strings.Repeat("long", 40)},
		{Title: "Ideas: 2024?"},
		{Title: "Ideas 2024"},
	}

	res, err := Notes(context.Background(), notes, out)
	if err != nil {
		t.Fatalf("Notes() error = %v", err)
	}
	if res.Exported != 3 {
		t.Errorf("Exported = %d, want 3", res.Exported)
	}
	for _, name := range []string{
		strings.Repeat("long", 25) + ".txt",
		"Ideas 2024.txt",
		"Ideas 2024_1.txt",
	} {
		if _, ok := out.Get(name); !ok {
			t.Errorf("missing %q, have %v", name, out.Names())
		}
	}
}

func TestNotes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := sink.NewMemorySink("out")
	res, err := Notes(ctx, []ibex.Note{{Title: "a"}}, out)
	if !errors.Is(err, context.Canceled) || res.Exported != 0 {
		t.Errorf("Notes() = %+v, %v", res, err)
	}
}

func TestCalls(t *testing.T) {
	calls := []ibex.CallRecord{
		{Address: "+15550100", Date: time.Date(2024, 4, 5, 14, 7, 0, 0, time.UTC), Duration: 125, Type: ibex.CallOutgoing, Answered: true},
		{Address: "", Duration: 0, Type: ibex.CallMissed},
		{Address: "Smith, John", Date: time.Date(2024, 4, 5, 15, 0, 0, 0, time.UTC), Duration: 3725, Type: ibex.CallIncoming, Answered: true},
	}

	out := sink.NewMemorySink("out")
	res, err := Calls(context.Background(), calls, out, "calls.csv", WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("Calls() error = %v", err)
	}
	if res.Exported != 3 {
		t.Errorf("Exported = %d, want 3", res.Exported)
	}

	want := "Date,Phone Number,Type,Duration,Answered\n" +
		"2024-04-05 14:07,+15550100,Outgoing,2:05,Yes\n" +
		",Unknown,Missed,0:00,No\n" +
		"2024-04-05 15:00,\"Smith, John\",Incoming,1:02:05,Yes\n"
	data, _ := out.Get("calls.csv")
	if string(data) != want {
		t.Errorf("csv =\n%s\nwant\n%s", data, want)
	}
}

func TestCalls_Empty(t *testing.T) {
	out := sink.NewMemorySink("out")
	_, err := Calls(context.Background(), nil, out, "calls.csv")
	if !errors.Is(err, ibex.ErrNothingToExport) {
		t.Errorf("Calls() error = %v, want ErrNothingToExport", err)
	}
	if len(out.Names()) != 0 {
		t.Errorf("Names() = %v, want none", out.Names())
	}
}
