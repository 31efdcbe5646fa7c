package schema

import "strings"

// Stage ids of the assistant workflow. The catalog mirrors the backend
// state-machine definition and is authored configuration, never derived
// from runtime data.
const (
	StageStart                 = "start"
	StageAgent                 = "agent"
	StageExecuteTool           = "execute_tool"
	StageGenerateFinalResponse = "generate_final_response"
	StageCleanupState          = "cleanup_state"
	StagePrepareDataDisplay    = "prepare_data_display"
	StagePrepareChartDisplay   = "prepare_chart_display"
	StagePrepareNewsDisplay    = "prepare_news_display"
	StagePrepareProfileDisplay = "prepare_profile_display"
	StageHandleError           = "handle_error"
	StageEnd                   = "end"
)

// StageTransition is one possible outgoing transition of a stage. Condition
// is an expr source evaluated against run facts (has_invocations, has_error,
// routed, tool_count) to decide whether the observed run took it.
type StageTransition struct {
	To        string
	Condition string
}

// WorkflowStageDefinition is a static catalog entry describing one possible
// workflow stage and its legal transitions.
type WorkflowStageDefinition struct {
	ID          string
	Kind        NodeKind
	Icon        string
	Label       string
	Transitions []StageTransition
}

// StageCatalog is the fixed set of workflow stages the topology builder
// instantiates, executed or not.
type StageCatalog struct {
	stages []WorkflowStageDefinition
	byID   map[string]int
}

// NewStageCatalog builds a catalog from an ordered stage list.
func NewStageCatalog(stages []WorkflowStageDefinition) *StageCatalog {
	c := &StageCatalog{
		stages: stages,
		byID:   make(map[string]int, len(stages)),
	}
	for i, s := range stages {
		c.byID[s.ID] = i
	}
	return c
}

// Stages returns the catalog entries in declaration order.
func (c *StageCatalog) Stages() []WorkflowStageDefinition {
	return c.stages
}

// Stage looks up a stage by id.
func (c *StageCatalog) Stage(id string) (WorkflowStageDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return WorkflowStageDefinition{}, false
	}
	return c.stages[i], true
}

// Contains reports whether id is a declared stage.
func (c *StageCatalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// DefaultStageCatalog mirrors the assistant workflow: the agent decides,
// tools execute, display preparation fans out per tool family, and every
// branch funnels through cleanup_state before end.
func DefaultStageCatalog() *StageCatalog {
	return NewStageCatalog([]WorkflowStageDefinition{
		{ID: StageStart, Kind: NodeKindStart, Icon: "▶️", Label: "Start",
			Transitions: []StageTransition{
				{To: StageAgent, Condition: "true"},
			}},
		{ID: StageAgent, Kind: NodeKindAgent, Icon: "🤖", Label: "Agent",
			Transitions: []StageTransition{
				{To: StageExecuteTool, Condition: "has_invocations"},
				{To: StageHandleError, Condition: "has_error"},
				{To: StageEnd, Condition: "!has_invocations && !has_error"},
			}},
		{ID: StageExecuteTool, Kind: NodeKindTool, Icon: "🔧", Label: "Execute Tool",
			Transitions: []StageTransition{
				{To: StageAgent, Condition: "tool_count > 1"},
				{To: StageGenerateFinalResponse, Condition: `routed == "generate_final_response"`},
				{To: StagePrepareDataDisplay, Condition: `routed == "prepare_data_display"`},
				{To: StagePrepareChartDisplay, Condition: `routed == "prepare_chart_display"`},
				{To: StagePrepareNewsDisplay, Condition: `routed == "prepare_news_display"`},
				{To: StagePrepareProfileDisplay, Condition: `routed == "prepare_profile_display"`},
				{To: StageHandleError, Condition: "has_error"},
			}},
		{ID: StageGenerateFinalResponse, Kind: NodeKindPreparation, Icon: "📝", Label: "Final Response",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: `routed == "generate_final_response"`},
			}},
		{ID: StagePrepareDataDisplay, Kind: NodeKindPreparation, Icon: "📋", Label: "Data Display",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: `routed == "prepare_data_display"`},
			}},
		{ID: StagePrepareChartDisplay, Kind: NodeKindPreparation, Icon: "📈", Label: "Chart Display",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: `routed == "prepare_chart_display"`},
			}},
		{ID: StagePrepareNewsDisplay, Kind: NodeKindPreparation, Icon: "📰", Label: "News Display",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: `routed == "prepare_news_display"`},
			}},
		{ID: StagePrepareProfileDisplay, Kind: NodeKindPreparation, Icon: "🏢", Label: "Profile Display",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: `routed == "prepare_profile_display"`},
			}},
		{ID: StageHandleError, Kind: NodeKindError, Icon: "⚠️", Label: "Handle Error",
			Transitions: []StageTransition{
				{To: StageCleanupState, Condition: "has_error"},
			}},
		{ID: StageCleanupState, Kind: NodeKindPreparation, Icon: "🧹", Label: "Cleanup",
			Transitions: []StageTransition{
				{To: StageEnd, Condition: "has_invocations"},
			}},
		{ID: StageEnd, Kind: NodeKindEnd, Icon: "🏁", Label: "End"},
	})
}

// RoutingTable decides which preparation stage follows the last executed
// tool. Tools absent from the table route directly to cleanup_state.
type RoutingTable map[string]string

// DefaultRouting carries the router membership of the backend workflow.
func DefaultRouting() RoutingTable {
	return RoutingTable{
		"analyze_risks":          StageGenerateFinalResponse,
		"compare_stocks":         StagePrepareChartDisplay,
		"display_price_chart":    StagePrepareChartDisplay,
		"create_dynamic_chart":   StagePrepareChartDisplay,
		"display_raw_data":       StagePrepareDataDisplay,
		"display_processed_data": StagePrepareDataDisplay,
		"get_stock_news":         StagePrepareNewsDisplay,
		"get_company_profile":    StagePrepareProfileDisplay,
	}
}

// RouteFor returns the stage that follows a chain ending in the given tool.
func (t RoutingTable) RouteFor(tool string) string {
	if to, ok := t[tool]; ok {
		return to
	}
	return StageCleanupState
}

// ToolDescriptor is the display metadata for a known tool.
type ToolDescriptor struct {
	Name  string
	Icon  string
	Label string
}

var knownTools = map[string]ToolDescriptor{
	"search_ticker":          {Name: "search_ticker", Icon: "🔍", Label: "Search Ticker"},
	"fetch_data":             {Name: "fetch_data", Icon: "📊", Label: "Fetch Data"},
	"preprocess_data":        {Name: "preprocess_data", Icon: "⚙️", Label: "Preprocess Data"},
	"analyze_risks":          {Name: "analyze_risks", Icon: "📈", Label: "Analyze Risks"},
	"display_raw_data":       {Name: "display_raw_data", Icon: "📋", Label: "Display Raw Data"},
	"display_processed_data": {Name: "display_processed_data", Icon: "📋", Label: "Display Processed Data"},
	"create_dynamic_chart":   {Name: "create_dynamic_chart", Icon: "📈", Label: "Create Dynamic Chart"},
	"get_stock_news":         {Name: "get_stock_news", Icon: "📰", Label: "Get Stock News"},
	"get_company_profile":    {Name: "get_company_profile", Icon: "🏢", Label: "Get Company Profile"},
	"display_price_chart":    {Name: "display_price_chart", Icon: "📉", Label: "Display Price Chart"},
	"compare_stocks":         {Name: "compare_stocks", Icon: "⚖️", Label: "Compare Stocks"},
	"query_research":         {Name: "query_research", Icon: "📚", Label: "Query Research"},
}

// KnownTool reports whether name is in the tool catalog.
func KnownTool(name string) bool {
	_, ok := knownTools[name]
	return ok
}

// DescriptorFor returns the descriptor for a tool name, substituting a
// generic fallback (wrench icon, the raw name as label) for unknown tools.
func DescriptorFor(name string) ToolDescriptor {
	if d, ok := knownTools[name]; ok {
		return d
	}
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		label = "Unknown Tool"
	}
	return ToolDescriptor{Name: name, Icon: "🔧", Label: label}
}
