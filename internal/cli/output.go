package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/okian/pickem/internal/domain/event"
)

// printEvent writes one event in the selected format. Text format is a
// single line per event so tail output stays greppable.
func printEvent(w io.Writer, format string, e event.Event) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(e)
	}
	ts := ""
	if !e.CreatedAt.IsZero() {
		ts = e.CreatedAt.UTC().Format(time.RFC3339) + " "
	}
	_, err := fmt.Fprintf(w, "%s#%d %s [%s] %s\n", ts, e.ID, e.Kind, e.Scope, string(e.Payload))
	return err
}
