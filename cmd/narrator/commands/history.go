package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lkovac/narrator/core/classify"
	"github.com/lkovac/narrator/internal/config"
	"github.com/lkovac/narrator/internal/history"
)

var (
	flagHistoryLimit int
	flagHistoryPath  string
)

var (
	historyTimeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	historyQuestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true)
	historySummaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))
	historySkipStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	historySpokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent narration decisions",
	Long: `Show what the narrator recently decided, newest first: spoken
summaries and questions along with the deltas it chose to skip.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "how many records to show")
	historyCmd.Flags().StringVar(&flagHistoryPath, "history", "", "history database path")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := flagHistoryPath
	if path == "" {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			return err
		}
		path = cfg.HistoryPath
	}
	if path == "" {
		path = history.DefaultPath()
	}

	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	records, err := store.ListRecent(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No narration history yet.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(out, renderRecord(rec))
	}
	return nil
}

func renderRecord(rec history.Record) string {
	timestamp := historyTimeStyle.Render(rec.ObservedAt.Local().Format("Jan 02 15:04:05"))

	kind := fmt.Sprintf("%-8s", rec.Kind)
	switch rec.Kind {
	case string(classify.KindQuestion):
		kind = historyQuestionStyle.Render(kind)
	case string(classify.KindSkip):
		kind = historySkipStyle.Render(kind)
	default:
		kind = historySummaryStyle.Render(kind)
	}

	text := strings.ReplaceAll(rec.Text, "\n", " ")
	if rec.Kind == string(classify.KindSkip) {
		text = historySkipStyle.Render(text)
	}

	marker := ""
	if rec.Spoken {
		marker = " " + historySpokenStyle.Render("(spoken)")
	}
	return fmt.Sprintf("%s  %s  %s%s", timestamp, kind, text, marker)
}
