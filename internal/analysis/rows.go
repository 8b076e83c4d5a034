package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

// Header is the column layout of the analysis table.
var Header = []string{"PID", "turn", "chat_content", "persuasion_strategy", "detected_info", "necessity (y/n)", "justification"}

const multiSep = " | "

// Row is one conversation turn of one participant.
type Row struct {
	PID           string
	Turn          int
	ChatContent   string
	Persuasion    string
	DetectedInfo  string
	Necessity     string
	Justification string
}

func (r Row) record() []string {
	return []string{r.PID, strconv.Itoa(r.Turn), r.ChatContent, r.Persuasion, r.DetectedInfo, r.Necessity, r.Justification}
}

// Rows builds one row per turn. Participant turns that contain a surveyed
// item's evidence or phrase (case-insensitive) carry that item's judgment.
func Rows(pid string, turns []transcript.Turn, fb *recorder.FeedbackRecord) []Row {
	rows := make([]Row, 0, len(turns))
	for _, t := range turns {
		row := Row{
			PID:         pid,
			Turn:        t.Number,
			ChatContent: t.ChatContent(),
			Persuasion:  t.Persuasion,
		}
		if fb != nil && t.Role == transcript.RoleUser {
			var info, necessity, why []string
			for _, it := range fb.Items {
				if !mentions(t.Text, it.Evidence, it.Phrase) {
					continue
				}
				info = append(info, it.Display)
				necessity = append(necessity, yesNo(it.Selected))
				why = append(why, strings.TrimSpace(it.Reasoning))
			}
			row.DetectedInfo = strings.Join(info, multiSep)
			row.Necessity = strings.Join(necessity, multiSep)
			row.Justification = strings.Join(why, multiSep)
		}
		rows = append(rows, row)
	}
	return rows
}

func mentions(text string, keys ...string) bool {
	lower := strings.ToLower(text)
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
