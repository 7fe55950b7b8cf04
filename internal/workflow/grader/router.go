package grader

import (
	"context"
	"fmt"

	wfmodel "agentic-rag-api/internal/workflow/model"
	workflowport "agentic-rag-api/internal/workflow/port"
	workflowprompt "agentic-rag-api/internal/workflow/prompt"
)

// Router 决定问题先查本地向量库还是联网搜索
type Router struct {
	caller *structuredCaller
}

func NewRouter(factory workflowport.ChatModelFactory, opts Options) *Router {
	return &Router{caller: newStructuredCaller(factory, opts)}
}

type routePayload struct {
	Datasource *string `json:"datasource"`
}

// Route 返回 vectorstore 或 websearch
func (r *Router) Route(ctx context.Context, question string) (wfmodel.RouteVerdict, error) {
	var p routePayload
	err := r.caller.call(ctx, verdictCall{
		node:     "route",
		verdict:  "route",
		promptID: workflowprompt.PromptRouterV1,
		vars:     map[string]any{"question": question},
		schema:   enumSchema("datasource", string(wfmodel.RouteVectorstore), string(wfmodel.RouteWebsearch)),
	}, &p)
	if err != nil {
		return "", err
	}
	if p.Datasource == nil {
		return "", formatError("route", "", fmt.Errorf("missing field datasource"))
	}
	v := wfmodel.RouteVerdict(*p.Datasource)
	if !v.Valid() {
		return "", formatError("route", *p.Datasource, fmt.Errorf("datasource %q is not one of vectorstore|websearch", *p.Datasource))
	}
	return v, nil
}
