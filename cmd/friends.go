package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/tagalong/internal/listen"
	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// Column widths for the default table output
const (
	nameWidth   = 20
	trackWidth  = 32
	artistWidth = 24
)

// friendsCmd represents the friends command
var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "Show what your friends are listening to",
	Long: `Fetch the friend activity feed and print one line per friend.

By default the output is an aligned table. A Go template can be given with
--format (or friends.format in ~/.config/tagalong/config.yaml).
Available fields: .UserURI, .UserName, .TrackURI, .TrackName, .ArtistName,
.URL, .Ago

Use the URI in the first column with 'tagalong follow'.`,
	RunE: runFriends,
}

func init() {
	rootCmd.AddCommand(friendsCmd)

	friendsCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	friendsCmd.Flags().Bool("json", false, "Print the feed as JSON")
}

// friendRow is the template data for one friend
type friendRow struct {
	UserURI    string `json:"user_uri"`
	UserName   string `json:"user_name"`
	TrackURI   string `json:"track_uri"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	URL        string `json:"url"`
	Ago        string `json:"ago"`
	Timestamp  int64  `json:"timestamp"`
}

func runFriends(cmd *cobra.Command, args []string) error {
	logger := setupLogger(logFile, logLevel)

	svc, err := loadServices(logger, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	session, err := svc.openSession(ctx)
	if err != nil {
		return err
	}

	activities, err := listen.NewPoller(svc.spotifyClient(ctx, session), logger).Fetch(ctx)
	if err != nil {
		return err
	}

	rows := buildRows(activities, time.Now())

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = svc.cfg.FriendsFormat
	}

	if format != "" {
		for _, row := range rows {
			line, err := formatRow(row, format)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Println(line)
		}
		return nil
	}

	writeTable(os.Stdout, rows)
	return nil
}

// buildRows converts activities into display rows, most recent first
func buildRows(activities []listen.Activity, now time.Time) []friendRow {
	rows := make([]friendRow, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, friendRow{
			UserURI:    a.UserURI,
			UserName:   a.UserName,
			TrackURI:   a.TrackURI,
			TrackName:  a.TrackName,
			ArtistName: a.ArtistName,
			URL:        spotify.URIToURL(a.TrackURI),
			Ago:        formatAgo(now.Sub(time.UnixMilli(a.TimestampMS))),
			Timestamp:  a.TimestampMS,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp > rows[j].Timestamp
	})

	return rows
}

// writeTable prints rows as aligned columns
func writeTable(w io.Writer, rows []friendRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No friend activity")
		return
	}

	for _, row := range rows {
		name := row.UserName
		if name == "" {
			name = row.UserURI
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			padToWidth(name, nameWidth),
			padToWidth(row.TrackName, trackWidth),
			padToWidth(row.ArtistName, artistWidth),
			padToWidth(row.Ago, 8),
			row.UserURI,
		)
	}
}

// formatRow applies the template to one row
func formatRow(row friendRow, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, row); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// formatAgo renders an elapsed duration compactly: "now", "5m", "3h", "2d"
func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Wide runes can leave the truncated text one column short
		if resultWidth := runewidth.StringWidth(result); resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}
