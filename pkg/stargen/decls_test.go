package stargen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testHeader = `#pragma once
#include <stdint.h>

typedef struct sg_desc { int x; } sg_desc;

SOKOL_GFX_API_DECL void sg_setup(const sg_desc* desc);
SOKOL_GFX_API_DECL bool sg_isvalid(void);
SOKOL_GFX_API_DECL const char *sg_query_name(int id);
SOKOL_GFX_API_DECL void sg_apply_viewport(int x, int y,
    int width, int height,
    bool origin_top_left);
SOKOL_LOG_API_DECL void slog_func(const char* tag, uint32_t log_level);
extern "C" {
extern int sg_extern_fn(int a);
extern int sg_counter;
SOKOL_GFX_API_IMPL void sg_ignored(void);
`

func TestParseDecls(t *testing.T) {
	decls, err := ParseDecls(strings.NewReader(testHeader), "sg_")
	require.NoError(t, err)

	expected := []Decl{
		{Name: "sg_setup", Return: "void", Params: "const sg_desc* desc", Line: 6},
		{Name: "sg_isvalid", Return: "bool", Params: "", Line: 7},
		{Name: "sg_query_name", Return: "const char*", Params: "int id", Line: 8},
		{Name: "sg_apply_viewport", Return: "void", Params: "int x, int y, int width, int height, bool origin_top_left", Line: 9},
		{Name: "sg_extern_fn", Return: "int", Params: "int a", Line: 14},
	}

	if diff := cmp.Diff(expected, decls); diff != "" {
		t.Errorf("unexpected declarations (-want +got):\n%s", diff)
	}
}

func TestParseDeclsAllPrefixes(t *testing.T) {
	decls, err := ParseDecls(strings.NewReader(testHeader), "")
	require.NoError(t, err)

	names := make([]string, len(decls))
	for idx, decl := range decls {
		names[idx] = decl.Name
	}

	expected := []string{"sg_setup", "sg_isvalid", "sg_query_name", "sg_apply_viewport", "slog_func", "sg_extern_fn"}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("unexpected names (-want +got):\n%s", diff)
	}
}
