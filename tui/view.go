package tui

import (
	"fmt"
	"strings"

	"newsdesk/orchestrator"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("📰 " + m.Article.Title))
	b.WriteString("\n")
	if m.Article.SourceName != "" {
		b.WriteString(InfoStyle.Render(m.Article.SourceName))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.stateText())
	b.WriteString("\n\n")

	if len(m.Steps) > 0 {
		b.WriteString(InfoStyle.Render("📝 Activity:"))
		b.WriteString("\n")
		for _, s := range m.Steps {
			b.WriteString(InfoStyle.Render(fmt.Sprintf("   %s  %s", s.At.Format("15:04:05"), s.Text)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Result != nil {
		b.WriteString(BoxStyle.Render(m.render(briefingMarkdown(*m.Result))))
		b.WriteString("\n\n")
	}

	if m.Done() && m.Retry != nil {
		b.WriteString(HighlightStyle.Render("Press 'r' to regenerate or 'q' to exit"))
	} else if m.Done() || m.Closed {
		b.WriteString(HighlightStyle.Render("Press 'q' to exit"))
	} else {
		b.WriteString(InfoStyle.Render("Press 'q' or Ctrl+C to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) stateText() string {
	switch {
	case m.Err != nil:
		return ErrorStyle.Render("❌ Error: " + m.Err.Error())
	case m.Result != nil:
		return StatusStyle.Render("✅ Complete")
	case m.Closed:
		return WarningStyle.Render("Research ended without a result")
	}
	switch m.Current {
	case orchestrator.PhaseIdle:
		return InfoStyle.Render("⏳ Waiting to start...")
	case orchestrator.PhaseScraping:
		return StatusStyle.Render("🌐 Extracting article...")
	case orchestrator.PhaseFindingRelated:
		return StatusStyle.Render("🔍 Finding related coverage...")
	case orchestrator.PhaseSearchingWeb:
		return StatusStyle.Render("🔎 Searching the web...")
	case orchestrator.PhaseGenerating:
		return StatusStyle.Render("✍️  Writing briefing...")
	default:
		return ""
	}
}

// briefingMarkdown lays a result out as markdown for rendering.
func briefingMarkdown(res orchestrator.Result) string {
	var b strings.Builder
	b.WriteString("## Briefing\n\n")
	b.WriteString(res.Summary.Text)
	b.WriteString("\n")

	if len(res.Summary.Related) > 0 {
		b.WriteString("\n### Related coverage\n\n")
		for _, r := range res.Summary.Related {
			fmt.Fprintf(&b, "- %s (%s)\n", r.Title, strings.Join(r.Matched, ", "))
		}
	}
	if len(res.Summary.Web) > 0 {
		b.WriteString("\n### Web\n\n")
		for _, w := range res.Summary.Web {
			fmt.Fprintf(&b, "- [%s](%s)\n", w.Title, w.URL)
		}
	}
	if res.FromCache {
		fmt.Fprintf(&b, "\n*Cached %s*\n", res.GeneratedAt.Format("2 Jan 15:04"))
	}
	return b.String()
}
