package handlers

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/services"
)

// AttributeHandler serves eav.v1.AttributeService
type AttributeHandler struct {
	definitions services.DefinitionServiceInterface
	projects    services.ProjectServiceInterface
}

var _ AttributeServiceServer = (*AttributeHandler)(nil)

// NewAttributeHandler creates a new AttributeHandler
func NewAttributeHandler(definitions services.DefinitionServiceInterface, projects services.ProjectServiceInterface) *AttributeHandler {
	return &AttributeHandler{definitions: definitions, projects: projects}
}

// === Attribute administration ===

// CreateAttribute handles the CreateAttribute RPC.
// Request: {name, type, options?}
func (h *AttributeHandler) CreateAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	def, err := definitionFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := h.definitions.Create(ctx, def); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(definitionToMap(def))
}

// UpdateAttribute handles the UpdateAttribute RPC.
// Request: {id, name, type, options?}
func (h *AttributeHandler) UpdateAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	def, err := definitionFromRequest(req)
	if err != nil {
		return nil, err
	}
	def.ID = id

	if err := h.definitions.Update(ctx, def); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(definitionToMap(def))
}

// DeleteAttribute handles the DeleteAttribute RPC. Values of the
// attribute are removed with it.
func (h *AttributeHandler) DeleteAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	if err := h.definitions.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// ListAttributes handles the ListAttributes RPC
func (h *AttributeHandler) ListAttributes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	defs, err := h.definitions.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]interface{}, 0, len(defs))
	for _, def := range defs {
		list = append(list, definitionToMap(def))
	}
	return toStruct(map[string]interface{}{"attributes": list})
}

// === Projects ===

// CreateProject handles the CreateProject RPC.
// Request: {name, status?, attributes?: {name: value}}
func (h *AttributeHandler) CreateProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, _ := stringField(req, "name")
	st, _, err := projectStatus(req)
	if err != nil {
		return nil, err
	}
	attrs, err := structField(req, "attributes")
	if err != nil {
		return nil, err
	}

	project, err := h.projects.Create(ctx, services.ProjectInput{Name: name, Status: st}, attrs)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(project)
}

// UpdateProject handles the UpdateProject RPC. Static fields absent from
// the request keep their current value; a null attribute removes it.
func (h *AttributeHandler) UpdateProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	attrs, err := structField(req, "attributes")
	if err != nil {
		return nil, err
	}

	in, err := h.projectInput(ctx, id, req)
	if err != nil {
		return nil, err
	}

	project, err := h.projects.Update(ctx, id, in, attrs)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(project)
}

// projectInput merges the static fields of the request over the current
// project. It returns nil when the request carries no static field.
func (h *AttributeHandler) projectInput(ctx context.Context, id int64, req *structpb.Struct) (*services.ProjectInput, error) {
	name, hasName := stringField(req, "name")
	st, hasStatus, err := projectStatus(req)
	if err != nil {
		return nil, err
	}
	if !hasName && !hasStatus {
		return nil, nil
	}

	current, err := h.projects.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	in := &services.ProjectInput{}
	if hasName {
		in.Name = name
	} else {
		in.Name, _ = current["name"].(string)
	}
	if hasStatus {
		in.Status = st
	} else if v, ok := current["status"].(int); ok {
		in.Status = entities.ProjectStatus(v)
	}
	return in, nil
}

// GetProject handles the GetProject RPC.
// Request: {id, attributes?: [name]}; attributes limits the dynamic attributes returned.
func (h *AttributeHandler) GetProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	attributes, err := stringList(req, "attributes")
	if err != nil {
		return nil, err
	}
	project, err := h.projects.Get(ctx, id, attributes...)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(project)
}

// DeleteProject handles the DeleteProject RPC
func (h *AttributeHandler) DeleteProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return nil, err
	}
	if err := h.projects.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// ListProjects handles the ListProjects RPC.
// Request: {filters?: {name: "op:operand"}, has_all?, has_any?, order_by?, desc?, page?, per_page?}
func (h *AttributeHandler) ListProjects(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filters, err := filterMap(req, "filters")
	if err != nil {
		return nil, err
	}
	hasAll, err := stringList(req, "has_all")
	if err != nil {
		return nil, err
	}
	hasAny, err := stringList(req, "has_any")
	if err != nil {
		return nil, err
	}

	listReq := &services.ListProjectsRequest{Filters: filters, Desc: boolField(req, "desc")}
	listReq.HasAllAttributes(hasAll...).HasAnyAttribute(hasAny...)
	listReq.OrderBy, _ = stringField(req, "order_by")
	listReq.Page, _ = intField(req, "page")
	listReq.PerPage, _ = intField(req, "per_page")
	if listReq.Page < 0 || listReq.PerPage < 0 {
		return nil, status.Error(codes.InvalidArgument, "page and per_page must not be negative")
	}

	page, err := h.projects.List(ctx, listReq)
	if err != nil {
		return nil, toStatus(err)
	}

	projects := make([]interface{}, 0, len(page.Projects))
	for _, p := range page.Projects {
		projects = append(projects, p)
	}
	return toStruct(map[string]interface{}{
		"projects": projects,
		"total":    page.Total,
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}
