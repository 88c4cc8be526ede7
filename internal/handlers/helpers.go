package handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/services"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
)

// === Shared Helper Functions for all handlers ===

// toStatus maps a service error to a gRPC status. Hints attached with
// errors.WithHint are appended to the message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	msg := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}

	switch {
	case errors.Is(err, services.ErrInvalidArgument),
		errors.Is(err, eav.ErrInvalidAttributeValue),
		errors.Is(err, eav.ErrUnknownAttribute),
		errors.Is(err, eav.ErrMalformedFilterOperand):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, repositories.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, repositories.ErrDuplicateName):
		return status.Error(codes.AlreadyExists, msg)
	case errors.Is(err, services.ErrTypeChangeWithValues),
		errors.Is(err, eav.ErrOwnerNotSaved):
		return status.Error(codes.FailedPrecondition, msg)
	}
	return status.Error(codes.Internal, msg)
}

// requireID reads a positive integer id from a request field. Numbers and
// numeric strings are accepted.
func requireID(req *structpb.Struct, field string) (int64, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}

	var id int64
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n > math.MaxInt64 {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
		}
		id = int64(n)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
		}
		id = n
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", field)
	}

	if id <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be positive", field)
	}
	return id, nil
}

func stringField(req *structpb.Struct, field string) (string, bool) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func intField(req *structpb.Struct, field string) (int, bool) {
	v, ok := req.GetFields()[field]
	if !ok {
		return 0, false
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return int(kind.NumberValue), true
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(kind.StringValue))
		return n, err == nil
	}
	return 0, false
}

func boolField(req *structpb.Struct, field string) bool {
	return req.GetFields()[field].GetBoolValue()
}

// stringList reads a list of strings; a single string is a one-element list
func stringList(req *structpb.Struct, field string) ([]string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return []string{kind.StringValue}, nil
	case *structpb.Value_ListValue:
		out := make([]string, 0, len(kind.ListValue.GetValues()))
		for i, item := range kind.ListValue.GetValues() {
			s, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, status.Errorf(codes.InvalidArgument, "%s[%d] must be a string", field, i)
			}
			out = append(out, s.StringValue)
		}
		return out, nil
	case *structpb.Value_NullValue:
		return nil, nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "%s must be a list of strings", field)
}

// structField reads a nested object as a plain map
func structField(req *structpb.Struct, field string) (map[string]interface{}, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StructValue:
		return kind.StructValue.AsMap(), nil
	case *structpb.Value_NullValue:
		return nil, nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", field)
}

// filterMap reads filters as name -> "operator:operand". Non-string
// operands are formatted so numbers can be sent unquoted.
func filterMap(req *structpb.Struct, field string) (map[string]string, error) {
	raw, err := structField(req, field)
	if err != nil || raw == nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			out[name] = val
		case float64:
			out[name] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[name] = strconv.FormatBool(val)
		default:
			return nil, status.Errorf(codes.InvalidArgument, "filter %q must be a string", name)
		}
	}
	return out, nil
}

func definitionFromRequest(req *structpb.Struct) (*entities.AttributeDefinition, error) {
	name, _ := stringField(req, "name")
	typeName, ok := stringField(req, "type")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "type is required")
	}
	typ, err := entities.ParseAttributeType(typeName)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	options, err := stringList(req, "options")
	if err != nil {
		return nil, err
	}
	return &entities.AttributeDefinition{Name: name, Type: typ, Options: options}, nil
}

func definitionToMap(def *entities.AttributeDefinition) map[string]interface{} {
	options := make([]interface{}, 0, len(def.Options))
	for _, opt := range def.Options {
		options = append(options, opt)
	}
	return map[string]interface{}{
		"id":      def.ID,
		"name":    def.Name,
		"type":    string(def.Type),
		"options": options,
	}
}

// toStruct converts a serialized entity into a response document
func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

func projectStatus(req *structpb.Struct) (entities.ProjectStatus, bool, error) {
	n, ok := intField(req, "status")
	if !ok {
		if _, present := req.GetFields()["status"]; present {
			return 0, false, status.Error(codes.InvalidArgument, "status must be an integer")
		}
		return 0, false, nil
	}
	st := entities.ProjectStatus(n)
	if !st.Valid() {
		return 0, false, status.Errorf(codes.InvalidArgument, "invalid project status: %d", n)
	}
	return st, true, nil
}
