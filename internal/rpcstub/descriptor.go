package rpcstub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	kmsv1 "github.com/yndnr/kms-cli/api/kms/v1"
)

// LoadService loads the interface definition at path and returns the
// service named serviceName (fully qualified).
//
// An empty path selects the embedded kms.proto. Files ending in .protoset,
// .pb or .binpb are read as a binary FileDescriptorSet; anything else is
// compiled as .proto source with the file's directory as import path.
func LoadService(ctx context.Context, path, serviceName string) (protoreflect.ServiceDescriptor, error) {
	if serviceName == "" {
		serviceName = kmsv1.ServiceName
	}

	switch {
	case path == "":
		return compileService(ctx, &protocompile.SourceResolver{
			Accessor: func(name string) (io.ReadCloser, error) {
				return kmsv1.FS.Open(name)
			},
		}, kmsv1.FileName, serviceName)
	case isDescriptorSet(path):
		return loadDescriptorSet(path, serviceName)
	default:
		return compileService(ctx, &protocompile.SourceResolver{
			ImportPaths: []string{filepath.Dir(path)},
		}, filepath.Base(path), serviceName)
	}
}

func isDescriptorSet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".protoset", ".pb", ".binpb":
		return true
	}
	return false
}

func compileService(ctx context.Context, resolver protocompile.Resolver, name, serviceName string) (protoreflect.ServiceDescriptor, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}

	files, err := compiler.Compile(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, name, err)
	}

	full := protoreflect.FullName(serviceName)
	for _, f := range files {
		services := f.Services()
		for i := 0; i < services.Len(); i++ {
			if services.Get(i).FullName() == full {
				return services.Get(i), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrServiceNotFound, serviceName, name)
}

func loadDescriptorSet(path, serviceName string) (protoreflect.ServiceDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, path, err)
	}

	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, path, err)
	}

	desc, err := files.FindDescriptorByName(protoreflect.FullName(serviceName))
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrServiceNotFound, serviceName, path)
	}
	svc, ok := desc.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a service", ErrServiceNotFound, serviceName)
	}
	return svc, nil
}
