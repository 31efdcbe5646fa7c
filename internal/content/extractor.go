// Package content derives bounded display text for graph nodes from the
// deeply nested, inconsistently shaped tool-call payloads of an agent run.
// Extraction strategies are tried in priority order and every node falls
// back to fixed text rather than failing the graph.
package content

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/internal/metrics"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

// subjectQuery scans a tool argument map for a recognizable subject field.
// Evaluated with gojq so nested and aliased payload shapes stay declarative.
const subjectQuery = `.ticker // .symbol // .company // .company_name // .query // (.tickers | arrays | join(", ")) // empty`

// Options adjust extraction for one pipeline run.
type Options struct {
	Language     string
	UserQuery    string
	FallbackIcon string
}

// Extractor populates node content and attaches detail nodes.
type Extractor struct {
	jq     *queryEngine
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger falls back to slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{jq: newQueryEngine(), logger: logger}
}

// Annotate fills in content and icons for every node of the topology and
// appends one detail node per agent and invocation node. It never fails:
// a node whose extraction panics receives fixed fallback content.
func (x *Extractor) Annotate(topo *graph.Topology, invs []schema.ToolInvocation, opts Options) {
	opts.Language = NormalizeLang(opts.Language)

	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		node.Content = x.safeExtract(node, invs, opts)
		node.Icon = resolveIcon(node, opts.FallbackIcon)
	}

	// Detail nodes carry the extracted text the parent has no room for:
	// the user's query on the agent node, argument summaries on tool nodes.
	var details []schema.Node
	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		if node.Kind == schema.NodeKindAgent || node.InvocationOrder > 0 {
			details = append(details, x.detailNode(node, invs, opts))
		}
	}
	for _, d := range details {
		topo.AddNode(d)
	}
}

// safeExtract shields the pipeline from extraction bugs: any panic yields
// the fixed fallback triple for that node only.
func (x *Extractor) safeExtract(node *schema.Node, invs []schema.ToolInvocation, opts Options) (content schema.NodeContent) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("content extraction failed, using fallback",
				"node", node.ID, "panic", fmt.Sprint(r))
			metrics.ContentFallback()
			content = fallbackContent(node, opts.Language)
		}
	}()
	return x.extract(node, invs, opts)
}

func (x *Extractor) extract(node *schema.Node, invs []schema.ToolInvocation, opts Options) schema.NodeContent {
	var c schema.NodeContent
	switch {
	case node.InvocationOrder > 0:
		c = x.toolContent(node, invs, opts, PrimaryLimit, SecondaryLimit, DetailLimit)
	case node.Kind == schema.NodeKindAgent:
		c = x.agentContent(invs, opts, PrimaryLimit, SecondaryLimit, DetailLimit)
	default:
		c = stageContent(node, opts.Language)
	}
	return suppressDuplicates(c, opts.Language)
}

// agentContent resolves the user intent, trying in order: the explicit
// query, a subject field from the first invocation's arguments, a
// classification of the tool families used, then a literal placeholder.
func (x *Extractor) agentContent(invs []schema.ToolInvocation, opts Options, pLimit, sLimit, dLimit int) schema.NodeContent {
	if q := strings.TrimSpace(opts.UserQuery); q != "" {
		return schema.NodeContent{
			Primary:   Truncate(q, pLimit),
			Secondary: Truncate(msg(opts.Language, msgUserQuery), sLimit),
			Detail:    Truncate(q, dLimit),
		}
	}

	if subject := x.firstSubject(invs); subject != "" {
		return schema.NodeContent{
			Primary:   Truncate(fmt.Sprintf(msg(opts.Language, msgAnalyze), subject), pLimit),
			Secondary: Truncate(msg(opts.Language, msgUserQuery), sLimit),
		}
	}

	if label := classifyTools(invs, opts.Language); label != "" {
		return schema.NodeContent{Primary: Truncate(label, pLimit)}
	}

	return schema.NodeContent{Primary: Truncate(msg(opts.Language, msgUserQuery), pLimit)}
}

// firstSubject runs the subject scan over the first invocation's arguments.
func (x *Extractor) firstSubject(invs []schema.ToolInvocation) string {
	if len(invs) == 0 || len(invs[0].Arguments) == 0 {
		return ""
	}
	out, err := x.jq.evalFirst(subjectQuery, invs[0].Arguments)
	if err != nil {
		x.logger.Debug("subject scan failed", "error", err)
		return ""
	}
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// classifyTools labels the run by the family of tools it used.
func classifyTools(invs []schema.ToolInvocation, lang string) string {
	for _, inv := range invs {
		name := strings.ToLower(inv.Name)
		switch {
		case strings.Contains(name, "news"):
			return msg(lang, msgNewsRequest)
		case strings.Contains(name, "profile"):
			return msg(lang, msgProfileRequest)
		case strings.Contains(name, "compare"):
			return msg(lang, msgCompareRequest)
		case strings.Contains(name, "chart"), strings.Contains(name, "price"):
			return msg(lang, msgChartRequest)
		}
	}
	return ""
}

// toolContent summarizes the tool name and its leading argument pairs.
func (x *Extractor) toolContent(node *schema.Node, invs []schema.ToolInvocation, opts Options, pLimit, sLimit, dLimit int) schema.NodeContent {
	inv, ok := invocationFor(node, invs)
	if !ok {
		return fallbackContent(node, opts.Language)
	}

	desc := schema.DescriptorFor(inv.Name)
	c := schema.NodeContent{Primary: Truncate(desc.Label, pLimit)}

	if len(inv.Arguments) == 0 {
		c.Secondary = Truncate(msg(opts.Language, msgNoArguments), sLimit)
		return c
	}
	c.Secondary = Truncate(argsSummary(inv.Arguments, 2), sLimit)
	c.Detail = Truncate(argsSummary(inv.Arguments, 4), dLimit)
	return c
}

func invocationFor(node *schema.Node, invs []schema.ToolInvocation) (schema.ToolInvocation, bool) {
	for _, inv := range invs {
		if inv.ExecutionOrder == node.InvocationOrder {
			return inv, true
		}
	}
	return schema.ToolInvocation{}, false
}

// argsSummary formats up to maxPairs argument key/value pairs, walking keys
// in sorted order so repeated runs produce identical text.
func argsSummary(args map[string]any, maxPairs int) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxPairs {
		keys = keys[:maxPairs]
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(args[k])))
	}
	return strings.Join(parts, ", ")
}

// formatValue renders an argument value compactly, eliding long ones.
func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []any:
		items := make([]string, 0, len(val))
		for _, it := range val {
			items = append(items, fmt.Sprint(it))
		}
		s = strings.Join(items, ", ")
	case map[string]any:
		s = fmt.Sprintf("{%d fields}", len(val))
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		s = fmt.Sprintf("%g", val)
	default:
		s = fmt.Sprint(val)
	}
	return Truncate(s, 16)
}

// stageContent is fixed, localized static text from the stage catalog.
func stageContent(node *schema.Node, lang string) schema.NodeContent {
	label, description := stageLabels(lang, node.ID, node.Label)
	return schema.NodeContent{
		Primary:   Truncate(label, PrimaryLimit),
		Secondary: Truncate(description, SecondaryLimit),
	}
}

// detailNode builds the content-detail companion of a parent node using
// the larger detail budgets. It inherits the parent's run state.
func (x *Extractor) detailNode(parent *schema.Node, invs []schema.ToolInvocation, opts Options) schema.Node {
	var c schema.NodeContent
	if parent.Kind == schema.NodeKindAgent {
		c = x.agentContent(invs, opts, PrimaryLimitDetail, SecondaryLimitDetail, DetailLimitDetail)
	} else {
		c = x.toolContent(parent, invs, opts, PrimaryLimitDetail, SecondaryLimitDetail, DetailLimitDetail)
	}
	c = suppressDuplicates(c, opts.Language)

	node := schema.Node{
		ID:         graph.DetailNodeID(parent.ID),
		Kind:       schema.NodeKindDetail,
		Label:      parent.Label,
		ParentID:   parent.ID,
		IsExecuted: parent.IsExecuted,
		IsActive:   parent.IsActive,
		IsUnused:   parent.IsUnused,
		Content:    c,
	}
	node.Icon = resolveIcon(&node, opts.FallbackIcon)
	return node
}

// suppressDuplicates blanks secondary/detail text that would only repeat
// the primary line or a generic placeholder.
func suppressDuplicates(c schema.NodeContent, lang string) schema.NodeContent {
	placeholder := msg(lang, msgFallback)
	if c.Secondary == c.Primary || c.Secondary == placeholder {
		c.Secondary = ""
	}
	if c.Detail == c.Primary || c.Detail == c.Secondary || c.Detail == placeholder {
		c.Detail = ""
	}
	return c
}

func fallbackContent(node *schema.Node, lang string) schema.NodeContent {
	label := node.Label
	if label == "" {
		label = msg(lang, msgFallback)
	}
	return schema.NodeContent{
		Primary: Truncate(label, PrimaryLimit),
		Detail:  Truncate(msg(lang, msgFallbackDetail), DetailLimit),
	}
}

var kindIcons = map[schema.NodeKind]string{
	schema.NodeKindStart:       "▶️",
	schema.NodeKindAgent:       "🤖",
	schema.NodeKindTool:        "🔧",
	schema.NodeKindPreparation: "📦",
	schema.NodeKindError:       "⚠️",
	schema.NodeKindEnd:         "🏁",
	schema.NodeKindDetail:      "💬",
	schema.NodeKindUnknown:     "❓",
}

// resolveIcon picks exactly one icon per node: the explicit icon, then the
// caller-supplied fallback, then the kind default.
func resolveIcon(node *schema.Node, fallback string) string {
	if node.Icon != "" {
		return node.Icon
	}
	if fallback != "" {
		return fallback
	}
	if icon, ok := kindIcons[node.Kind]; ok {
		return icon
	}
	return kindIcons[schema.NodeKindUnknown]
}
