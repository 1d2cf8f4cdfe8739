package rpcstub

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const richProto = `syntax = "proto3";
package rich;

service Rich {
  rpc Do(DoRequest) returns (DoResponse);
}

enum Level {
  LEVEL_UNSPECIFIED = 0;
  LEVEL_HIGH = 1;
}

message Inner {
  string label = 1;
  int64 weight = 2;
}

message DoRequest {
  string sender = 1;
  bytes blob = 2;
  bool flag = 3;
  int32 count = 4;
  uint64 big = 5;
  double ratio = 6;
  Level level = 7;
  Inner inner = 8;
  repeated string tags = 9;
  repeated Inner items = 10;
  map<string, string> attrs = 11;
}

message DoResponse {
  DoRequest data = 1;
  string error = 2;
}
`

func richMethod(t *testing.T) protoreflect.MethodDescriptor {
	t.Helper()
	path := writeTemp(t, "rich.proto", []byte(richProto))
	svc, err := LoadService(context.Background(), path, "rich.Rich")
	if err != nil {
		t.Fatalf("LoadService() error = %v", err)
	}
	return svc.Methods().ByName("Do")
}

func TestEncodeRequest(t *testing.T) {
	md := richMethod(t)

	msg, err := encodeRequest(md.Input(), Request{
		"sender": []byte("tok"),
		"blob":   "raw",
		"flag":   true,
		"count":  float64(7),
		"big":    uint64(1 << 40),
		"ratio":  2,
		"level":  "LEVEL_HIGH",
		"inner":  map[string]any{"label": "x", "weight": int64(3)},
		"tags":   []string{"a", "b"},
		"items":  []any{map[string]any{"label": "i1"}},
	})
	if err != nil {
		t.Fatalf("encodeRequest() error = %v", err)
	}

	fields := md.Input().Fields()
	if got := msg.Get(fields.ByName("sender")).String(); got != "tok" {
		t.Errorf("sender = %q, want %q", got, "tok")
	}
	if got := msg.Get(fields.ByName("blob")).Bytes(); !bytes.Equal(got, []byte("raw")) {
		t.Errorf("blob = %q, want %q", got, "raw")
	}
	if got := msg.Get(fields.ByName("count")).Int(); got != 7 {
		t.Errorf("count = %d, want 7", got)
	}
	if got := msg.Get(fields.ByName("ratio")).Float(); got != 2 {
		t.Errorf("ratio = %v, want 2", got)
	}
	if got := msg.Get(fields.ByName("level")).Enum(); got != 1 {
		t.Errorf("level = %d, want 1", got)
	}
	inner := msg.Get(fields.ByName("inner")).Message()
	if got := inner.Get(inner.Descriptor().Fields().ByName("weight")).Int(); got != 3 {
		t.Errorf("inner.weight = %d, want 3", got)
	}
	if got := msg.Get(fields.ByName("tags")).List().Len(); got != 2 {
		t.Errorf("len(tags) = %d, want 2", got)
	}
	if got := msg.Get(fields.ByName("items")).List().Len(); got != 1 {
		t.Errorf("len(items) = %d, want 1", got)
	}
}

func TestEncodeRequest_Errors(t *testing.T) {
	md := richMethod(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown field", Request{"nope": "x"}},
		{"bool into string", Request{"sender": true}},
		{"string into bool", Request{"flag": "yes"}},
		{"int32 overflow", Request{"count": int64(1) << 40}},
		{"fractional int", Request{"count": 1.5}},
		{"negative uint", Request{"big": -1}},
		{"unknown enum", Request{"level": "LEVEL_NOPE"}},
		{"scalar into message", Request{"inner": "x"}},
		{"scalar into list", Request{"tags": "x"}},
		{"nested unknown field", Request{"inner": map[string]any{"nope": 1}}},
		{"map field", Request{"attrs": map[string]any{"a": "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encodeRequest(md.Input(), tt.req)
			if !errors.Is(err, ErrEncode) {
				t.Errorf("encodeRequest() error = %v, want ErrEncode", err)
			}
		})
	}
}

func TestEncodeRequest_NilSkipped(t *testing.T) {
	md := richMethod(t)
	msg, err := encodeRequest(md.Input(), Request{"sender": nil})
	if err != nil {
		t.Fatalf("encodeRequest() error = %v", err)
	}
	if msg.Has(md.Input().Fields().ByName("sender")) {
		t.Error("nil value should leave the field unset")
	}
}

func kmsOutput(t *testing.T, method string) *dynamicpb.Message {
	t.Helper()
	md := loadEmbedded(t).Methods().ByName(protoreflect.Name(method))
	return dynamicpb.NewMessage(md.Output())
}

func setOutField(t *testing.T, m *dynamicpb.Message, name string, v protoreflect.Value) {
	t.Helper()
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		t.Fatalf("%s has no field %s", m.Descriptor().FullName(), name)
	}
	m.Set(fd, v)
}

func TestDecodeResponse(t *testing.T) {
	t.Run("bytes data", func(t *testing.T) {
		m := kmsOutput(t, "Encrypt")
		setOutField(t, m, "data", protoreflect.ValueOfBytes([]byte{1, 2}))

		resp, err := decodeResponse(m)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if got, ok := resp.Data.([]byte); !ok || !bytes.Equal(got, []byte{1, 2}) {
			t.Errorf("Data = %#v, want []byte{1, 2}", resp.Data)
		}
	})

	t.Run("false bool is data", func(t *testing.T) {
		m := kmsOutput(t, "Verify")
		setOutField(t, m, "data", protoreflect.ValueOfBool(false))

		resp, err := decodeResponse(m)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if resp.Data != false || resp.Failed() {
			t.Errorf("resp = %+v, want Data false", resp)
		}
	})

	t.Run("ack", func(t *testing.T) {
		m := kmsOutput(t, "NewNS")
		fd := m.Descriptor().Fields().ByName("data")
		m.Set(fd, protoreflect.ValueOfMessage(m.NewField(fd).Message()))

		resp, err := decodeResponse(m)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if _, ok := resp.Data.(map[string]any); !ok {
			t.Errorf("Data = %#v, want map", resp.Data)
		}
	})

	t.Run("server error", func(t *testing.T) {
		m := kmsOutput(t, "NewNS")
		setOutField(t, m, "error", protoreflect.ValueOfString("Namespace exists"))

		resp, err := decodeResponse(m)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if resp.Error != "Namespace exists" || !resp.Failed() {
			t.Errorf("resp = %+v, want server error", resp)
		}
	})

	t.Run("empty list is data", func(t *testing.T) {
		resp, err := decodeResponse(kmsOutput(t, "ListNS"))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if list, ok := resp.Data.([]any); !ok || len(list) != 0 {
			t.Errorf("Data = %#v, want empty list", resp.Data)
		}
	})

	t.Run("list entries", func(t *testing.T) {
		m := kmsOutput(t, "ListKey")
		fd := m.Descriptor().Fields().ByName("data")
		list := m.Mutable(fd).List()
		entry := list.NewElement().Message()
		ef := entry.Descriptor().Fields()
		entry.Set(ef.ByName("name"), protoreflect.ValueOfString("k1"))
		entry.Set(ef.ByName("type"), protoreflect.ValueOfString("aes256"))
		list.Append(protoreflect.ValueOfMessage(entry))

		resp, err := decodeResponse(m)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		items := resp.Data.([]any)
		row := items[0].(map[string]any)
		if row["name"] != "k1" || row["type"] != "aes256" || row["active"] != false {
			t.Errorf("row = %v", row)
		}
	})
}

func TestDecodeResponse_EnvelopeViolations(t *testing.T) {
	t.Run("neither", func(t *testing.T) {
		_, err := decodeResponse(kmsOutput(t, "Encrypt"))
		if !errors.Is(err, ErrEnvelope) {
			t.Errorf("error = %v, want ErrEnvelope", err)
		}
	})

	t.Run("both", func(t *testing.T) {
		m := kmsOutput(t, "ListNS")
		fd := m.Descriptor().Fields().ByName("data")
		list := m.Mutable(fd).List()
		list.Append(protoreflect.ValueOfMessage(list.NewElement().Message()))
		setOutField(t, m, "error", protoreflect.ValueOfString("boom"))

		_, err := decodeResponse(m)
		if !errors.Is(err, ErrEnvelope) {
			t.Errorf("error = %v, want ErrEnvelope", err)
		}
	})

	t.Run("no envelope fields", func(t *testing.T) {
		md := loadEmbedded(t).Methods().ByName("ListNS")
		entry := md.Output().Fields().ByName("data").Message()

		_, err := decodeResponse(dynamicpb.NewMessage(entry))
		if !errors.Is(err, ErrEnvelope) {
			t.Errorf("error = %v, want ErrEnvelope", err)
		}
	})
}
