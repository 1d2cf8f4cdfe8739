package kmsv1

import "embed"

// FileName is the name of the embedded interface definition.
const FileName = "kms.proto"

// ServiceName is the fully-qualified name of the KMS service.
const ServiceName = "Kms"

// FS holds kms.proto.
//
//go:embed kms.proto
var FS embed.FS
