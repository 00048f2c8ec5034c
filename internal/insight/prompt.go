package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

const systemPrompt = "You are a precise, concise data analyst."

// promptInput is what a prompt may say about a visualization.
type promptInput struct {
	DatasetName string
	ChartType   string
	Columns     []string
	Sample      []model.Row
}

// buildPrompt renders the user prompt for mode. Unknown modes get a general overview.
func buildPrompt(mode string, in promptInput) string {
	sample, err := json.MarshalIndent(in.Sample, "", "  ")
	if err != nil {
		sample = []byte("[]")
	}
	var b strings.Builder
	switch mode {
	case model.InsightSummary:
		fmt.Fprintf(&b, "Analyze the %s built from the dataset %q.\n", in.ChartType, in.DatasetName)
		writeSample(&b, in.Columns, sample)
		b.WriteString(`Write a Markdown summary for a non-technical reader, about 200 words, without code fences:
- a short heading
- **Overview:** one or two sentences on the overall story
- **Key signals:** three bullets, key figures in bold
- **Caveats:** one italic line on assumptions or data limits
Do not list per-column statistics.
`)
	case model.InsightStats:
		fmt.Fprintf(&b, "Give a statistical summary of the dataset %q.\n", in.DatasetName)
		writeSample(&b, in.Columns, sample)
		b.WriteString(`For each column give one line with the metrics that apply:
mean, median, mode, minimum, maximum and standard deviation.
Example: "- Revenue: mean = ..., median = ..., max = ..."
Stay quantitative and under 200 words.
`)
	case model.InsightRecommendation:
		fmt.Fprintf(&b, "Review the %s built from the dataset %q and recommend actions.\n", in.ChartType, in.DatasetName)
		writeSample(&b, in.Columns, sample)
		b.WriteString(`Infer the business domain from the column names and values. Answer in this structure:
1) Diagnosis: two or three bullets on what the data shows.
2) Plays: three to five numbered actions tailored to the domain.
3) Risks: two or three bullets on data quality, seasonality or sampling bias.
4) Next steps: a short checklist for the coming week.
5) KPIs: three to five metrics with one-line definitions.
Tie every point to the data and state assumptions. Keep it under 150 words.
`)
	default:
		fmt.Fprintf(&b, "Give a general overview of the dataset %q shown as a %s.\n", in.DatasetName, in.ChartType)
		writeSample(&b, in.Columns, sample)
		b.WriteString("Summarize the key points in under 200 words.\n")
	}
	return b.String()
}

func writeSample(b *strings.Builder, columns []string, sample []byte) {
	if len(columns) > 0 {
		fmt.Fprintf(b, "Columns: %s\n", strings.Join(columns, ", "))
	}
	b.WriteString("Sample rows:\n")
	b.Write(sample)
	b.WriteString("\n\n")
}
