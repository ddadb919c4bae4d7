// Package grpcjson calls unary gRPC methods with JSON payloads, resolving
// message types at runtime through server reflection.
package grpcjson

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Method is one unary method exposed by an upstream.
type Method struct {
	Service    string `json:"service"`
	Method     string `json:"method"`
	GRPCMethod string `json:"grpc_method"`
}

// SplitMethod parses "package.Service/Method". A leading slash is allowed.
func SplitMethod(full string) (service, method string, err error) {
	full = strings.TrimPrefix(full, "/")
	i := strings.LastIndex(full, "/")
	if i <= 0 || i == len(full)-1 {
		return "", "", fmt.Errorf("invalid gRPC method %q; expected package.Service/Method", full)
	}
	return full[:i], full[i+1:], nil
}

func dial(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func resolveMethod(rc *grpcreflect.Client, service, method string) (*desc.MethodDescriptor, error) {
	sd, err := rc.ResolveService(service)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", service, err)
	}
	md := sd.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("method %s not found on %s", method, service)
	}
	if md.IsClientStreaming() || md.IsServerStreaming() {
		return nil, fmt.Errorf("method %s/%s is streaming", service, method)
	}
	return md, nil
}

// ListMethods returns the unary methods of every service target exposes,
// skipping the reflection services.
func ListMethods(ctx context.Context, target string) ([]Method, error) {
	conn, err := dial(target)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rc := grpcreflect.NewClientAuto(ctx, conn)
	defer rc.Reset()

	svcs, err := rc.ListServices()
	if err != nil {
		return nil, err
	}
	sort.Strings(svcs)
	var out []Method
	for _, s := range svcs {
		if strings.HasPrefix(s, "grpc.reflection.") {
			continue
		}
		sd, err := rc.ResolveService(s)
		if err != nil {
			continue
		}
		for _, m := range sd.GetMethods() {
			if m.IsClientStreaming() || m.IsServerStreaming() {
				continue
			}
			out = append(out, Method{Service: s, Method: m.GetName(), GRPCMethod: s + "/" + m.GetName()})
		}
	}
	return out, nil
}
