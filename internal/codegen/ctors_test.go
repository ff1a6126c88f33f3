package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kefirc/amd64cg/internal/asmfmt/asmfmttest"
)

func TestCtorPoolEmitsInitAndFiniArraysInDeclarationOrder(t *testing.T) {
	p := NewCtorPool()
	p.AddConstructor("ctor_a")
	p.AddConstructor("ctor_b")
	p.AddDestructor("dtor_a")

	rec := &asmfmttest.Recorder{}
	p.Emit(rec)

	var raws []string
	for _, op := range rec.Ops {
		raws = append(raws, op.Mnemonic)
	}
	require.Equal(t, []string{
		".section .init_array,\"aw\"",
		".quad ctor_a",
		".quad ctor_b",
		".section .fini_array,\"aw\"",
		".quad dtor_a",
	}, raws)
}

func TestCtorPoolSkipsEmptyArrays(t *testing.T) {
	p := NewCtorPool()
	p.AddDestructor("dtor_only")

	rec := &asmfmttest.Recorder{}
	p.Emit(rec)

	var raws []string
	for _, op := range rec.Ops {
		raws = append(raws, op.Mnemonic)
	}
	assert.Equal(t, []string{".section .fini_array,\"aw\"", ".quad dtor_only"}, raws,
		"no constructors were added, so .init_array must not appear at all")
}
