package orchestrator

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"newsdesk/cache"
	"newsdesk/llm"
	"newsdesk/types"
)

const summarySystemPrompt = `You are a research assistant for a personal news reader.
Write a concise briefing on the article the user provides: what happened, why it matters and what remains open.
Use the related coverage and web results to add context and point out where sources disagree.
Refer to sources by their titles. Do not invent facts that are not in the material given.
Answer in plain prose with at most five short paragraphs.`

const chatSystemPrompt = `You are a research assistant answering follow-up questions about one news article.
Ground every answer in the article, its research briefing and any web results supplied with the question.
Say so plainly when the material does not answer the question.`

const translateSystemPrompt = `You translate news articles. Preserve names, numbers and quotations exactly.
Return only the translation, without commentary.`

var promptFuncs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

var summaryTemplate = template.Must(template.New("summary").Funcs(promptFuncs).Parse(`# Article
Title: {{.Article.Title}}
{{- if .Article.SourceName}}
Source: {{.Article.SourceName}}
{{- end}}
{{- if not .Article.PublishedAt.IsZero}}
Published: {{.Article.PublishedAt.Format "2006-01-02 15:04 MST"}}
{{- end}}
{{- if .Article.Link}}
Link: {{.Article.Link}}
{{- end}}

{{if .Scraped}}Full text{{else}}Feed excerpt{{end}}:
{{.Text}}
{{if .Related}}
# Related coverage
{{- range $i, $r := .Related}}
{{inc $i}}. {{$r.Title}} (shared terms: {{join $r.Matched ", "}})
{{- end}}
{{end}}
{{- if .Web}}
# Web results
{{- range $i, $w := .Web}}
{{inc $i}}. {{$w.Title}} <{{$w.URL}}>
{{- if $w.Snippet}}
   {{$w.Snippet}}
{{- end}}
{{- end}}
{{end}}`))

type summaryData struct {
	Article types.Article
	Text    string
	Scraped bool
	Related []cache.RelatedRef
	Web     []cache.WebRef
}

func summaryMessages(article types.Article, working workingText, related []cache.RelatedRef, web []cache.WebRef, maxChars int) []llm.Message {
	data := summaryData{
		Article: article,
		Text:    truncate(working.text, maxChars),
		Scraped: working.scraped,
		Related: related,
		Web:     web,
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: render(summaryTemplate, data)},
	}
}

// chatMessages builds the model conversation for a chat turn: the article
// context, then the thread with failed replies left out, then the new
// question with any fresh web results.
func chatMessages(article types.Article, text string, summary *cache.Summary, history []cache.ChatMessage, question string, web []cache.WebRef, maxChars int) []llm.Message {
	var ctxb strings.Builder
	fmt.Fprintf(&ctxb, "Article: %s\n", article.Title)
	if article.Link != "" {
		fmt.Fprintf(&ctxb, "Link: %s\n", article.Link)
	}
	fmt.Fprintf(&ctxb, "\n%s\n", truncate(text, maxChars))
	if summary != nil && summary.Text != "" {
		fmt.Fprintf(&ctxb, "\nResearch briefing:\n%s\n", summary.Text)
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystemPrompt + "\n\n" + ctxb.String()},
	}
	for _, m := range history {
		if m.Failed {
			continue
		}
		role := llm.RoleUser
		if m.Role == cache.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}

	q := question
	if len(web) > 0 {
		var sb strings.Builder
		sb.WriteString(question)
		sb.WriteString("\n\nWeb results:\n")
		for i, w := range web {
			fmt.Fprintf(&sb, "%d. %s <%s>\n", i+1, w.Title, w.URL)
			if w.Snippet != "" {
				fmt.Fprintf(&sb, "   %s\n", w.Snippet)
			}
		}
		q = sb.String()
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: q})
}

func translateMessages(title, text, language string, maxChars int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: translateSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Translate into %s.\n\n%s\n\n%s", language, title, truncate(text, maxChars))},
	}
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("render %s: %v", t.Name(), err))
	}
	return strings.TrimSpace(buf.String())
}

// truncate cuts s to at most max runes, preferring a word boundary.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	cut := string(r)
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + " …"
}
