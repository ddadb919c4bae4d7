package grpcjson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc/metadata"

	"github.com/waploaj/DyAPI/internal/dispatch"
	"github.com/waploaj/DyAPI/internal/util"
)

// Handler forwards validated parameters to a unary gRPC method. The method
// identity is "package.Service/Method" and the parameters, or the mapped
// fields when a setter mapping exists, form the input message.
type Handler struct {
	dispatch.Fields
	target string
}

// Factory returns a dispatch factory for the upstream at target (host:port).
func Factory(target string) dispatch.Factory {
	return func() (dispatch.Handler, error) {
		if target == "" {
			return nil, fmt.Errorf("grpc target is empty")
		}
		return &Handler{target: target}, nil
	}
}

func (h *Handler) Invoke(ctx context.Context, method string, params map[string]any, w http.ResponseWriter) error {
	service, name, err := SplitMethod(method)
	if err != nil {
		return err
	}
	conn, err := dial(h.target)
	if err != nil {
		return fmt.Errorf("upstream dial failed: %w", err)
	}
	defer conn.Close()

	rc := grpcreflect.NewClientAuto(ctx, conn)
	defer rc.Reset()

	md, err := resolveMethod(rc, service, name)
	if err != nil {
		return err
	}
	body, err := json.Marshal(h.Payload(params))
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	in := dynamic.NewMessage(md.GetInputType())
	if err := in.UnmarshalJSON(body); err != nil {
		return fmt.Errorf("build %s: %w", md.GetInputType().GetFullyQualifiedName(), err)
	}
	if id := util.RequestIDFrom(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", id)
	}
	out := dynamic.NewMessage(md.GetOutputType())
	if err := conn.Invoke(ctx, "/"+service+"/"+name, in, out); err != nil {
		return fmt.Errorf("grpc error: %w", err)
	}
	bs, err := out.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bs)
	return err
}
