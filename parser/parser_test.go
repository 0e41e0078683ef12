package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/schema"
	"github.com/blockpoll/devicesdk/types"
)

func TestProtocolVersionGating(t *testing.T) {
	s, err := schema.New(1, "gated").
		MinLength(4).
		Field(schema.FieldSpec{Name: "always", Offset: 0, Type: types.UInt16(), Required: true}).
		Field(schema.FieldSpec{Name: "new", Offset: 2, Type: types.UInt16(), MinProtoVersion: 2003}).
		Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s))

	data := []byte{0x00, 0x01, 0x00, 0x02}

	rec, err := p.ParseBlock(1, data, true, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Values["always"])
	require.Nil(t, rec.Values["new"])

	v2003 := 2003
	rec, err = p.ParseBlock(1, data, true, &v2003)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Values["always"])
	require.Equal(t, uint64(2), rec.Values["new"])
}

func TestParseIdentityOnEmptySchema(t *testing.T) {
	s, err := schema.New(2, "empty").MinLength(0).Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s))

	data := []byte{1, 2, 3, 4, 5}
	rec, err := p.ParseBlock(2, data, true, nil)
	require.NoError(t, err)
	require.Empty(t, rec.Values)
	require.Equal(t, len(data), rec.Length)
	require.Equal(t, data, rec.Raw)
}

func TestUnregisteredSchemaFails(t *testing.T) {
	p := parser.New(nil)
	_, err := p.ParseBlock(99, []byte{1}, true, nil)
	require.Error(t, err)
}

func TestRegisterIdempotentOnIdentity(t *testing.T) {
	s, err := schema.New(1, "a").MinLength(0).Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s))
	require.NoError(t, p.RegisterSchema(s))
}

func TestRegisterConflictDifferentName(t *testing.T) {
	s1, err := schema.New(1, "a").MinLength(0).Build()
	require.NoError(t, err)
	s2, err := schema.New(1, "b").MinLength(0).Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s1))
	require.Error(t, p.RegisterSchema(s2))
}

func TestRequiredFieldOutOfBoundsIsNullNotError(t *testing.T) {
	s, err := schema.New(1, "a").
		MinLength(0).
		Field(schema.FieldSpec{Name: "x", Offset: 10, Type: types.UInt16(), Required: true}).
		Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s))

	rec, err := p.ParseBlock(1, []byte{1, 2}, false, nil)
	require.NoError(t, err)
	require.Nil(t, rec.Values["x"])
}

func TestFieldGroupNesting(t *testing.T) {
	s, err := schema.New(1, "grouped").
		MinLength(4).
		Group("meta", true, []schema.FieldSpec{
			{Name: "a", Offset: 0, Type: types.UInt16(), Required: true},
			{Name: "b", Offset: 2, Type: types.UInt16(), Required: false},
		}).
		Build()
	require.NoError(t, err)

	p := parser.New(nil)
	require.NoError(t, p.RegisterSchema(s))

	rec, err := p.ParseBlock(1, []byte{0, 1, 0, 2}, true, nil)
	require.NoError(t, err)

	nested := rec.Values["meta"].(map[string]interface{})
	want := map[string]interface{}{"a": uint64(1), "b": uint64(2)}
	if diff := cmp.Diff(want, nested); diff != "" {
		t.Fatalf("grouped field values mismatch (-want +got):\n%s", diff)
	}
}
