package uritemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	type args struct {
		template string
		params   Params
	}
	tests := []struct {
		name    string
		args    args
		want    string
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "given template without placeholders and no params, then prefixes slash",
			args:    args{template: "test/path", params: Params{}},
			want:    "/test/path",
			wantErr: assert.NoError,
		},
		{
			name:    "given template with leading slash, then does not duplicate it",
			args:    args{template: "/test/path", params: nil},
			want:    "/test/path",
			wantErr: assert.NoError,
		},
		{
			name:    "given empty template, then returns root",
			args:    args{template: "", params: nil},
			want:    "/",
			wantErr: assert.NoError,
		},
		{
			name: "given unconsumed params with an empty value, then drops the empty one",
			args: args{
				template: "test/path",
				params:   Of("validSet", "value", "invalidSet", ""),
			},
			want:    "/test/path?validSet=value",
			wantErr: assert.NoError,
		},
		{
			name: "given placeholder and extra params, then binds path and appends query",
			args: args{
				template: "test/{path}",
				params:   Of("path", "1234", "invalidSet", "", "query", "parameter"),
			},
			want:    "/test/1234?query=parameter",
			wantErr: assert.NoError,
		},
		{
			name: "given two placeholders, then binds both",
			args: args{
				template: "test/{item}/{id}",
				params:   Of("item", "itemName", "id", "123"),
			},
			want:    "/test/itemName/123",
			wantErr: assert.NoError,
		},
		{
			name: "given several query params, then preserves insertion order",
			args: args{
				template: "search",
				params:   Of("z", "1", "a", "2", "m", "3"),
			},
			want:    "/search?z=1&a=2&m=3",
			wantErr: assert.NoError,
		},
		{
			name: "given values needing escaping, then escapes path and query separately",
			args: args{
				template: "files/{name}",
				params:   Of("name", "a b/c", "q", "x&y=z"),
			},
			want:    "/files/a%20b%2Fc?q=x%26y%3Dz",
			wantErr: assert.NoError,
		},
		{
			name: "given template with existing query, then appends with ampersand",
			args: args{
				template: "items?sort=asc",
				params:   Of("page", "2"),
			},
			want:    "/items?sort=asc&page=2",
			wantErr: assert.NoError,
		},
		{
			name: "given query placeholders, then binds them without appending again",
			args: args{
				template: "search?q={q}&page={page}",
				params:   Of("q", "go lang", "page", "2", "sort", "asc"),
			},
			want:    "/search?q=go+lang&page=2&sort=asc",
			wantErr: assert.NoError,
		},
		{
			name: "given query placeholder with empty value, then drops the whole pair",
			args: args{
				template: "search?q={q}&page={page}",
				params:   Of("q", "go", "page", ""),
			},
			want:    "/search?q=go",
			wantErr: assert.NoError,
		},
		{
			name: "given every query placeholder unbound, then omits the query",
			args: args{
				template: "items/{id}?fields={fields}",
				params:   Of("id", "7"),
			},
			want:    "/items/7",
			wantErr: assert.NoError,
		},
		{
			name: "given placeholder names differ in case, then does not bind",
			args: args{
				template: "users/{ID}",
				params:   Of("id", "1"),
			},
			want:    "",
			wantErr: assert.Error,
		},
		{
			name: "given placeholder bound to empty value, then returns unresolved error",
			args: args{
				template: "users/{id}",
				params:   Of("id", ""),
			},
			want: "",
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.args.template, tt.args.params)
			if !tt.wantErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_IsPure(t *testing.T) {
	params := Of("id", "7", "q", "go")

	first, err := Build("things/{id}", params)
	require.NoError(t, err)
	second, err := Build("things/{id}", params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Of("id", "7", "q", "go"), params)
}

func TestMergeDefaults(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		defaults Params
		want     string
	}{
		{
			name:     "given bound path with query, then defaults follow explicit params",
			uri:      "/test/itemName/123?isEnabled=true",
			defaults: Of("APIKey", "keyvalue"),
			want:     "/test/itemName/123?isEnabled=true&APIKey=keyvalue",
		},
		{
			name:     "given path without query, then defaults start the query",
			uri:      "/test/path",
			defaults: Of("APIKey", "keyvalue"),
			want:     "/test/path?APIKey=keyvalue",
		},
		{
			name:     "given key already present, then keeps the explicit value",
			uri:      "test/path?APIKey=value",
			defaults: Of("APIKey", "keyvalue"),
			want:     "/test/path?APIKey=value",
		},
		{
			name:     "given empty default value, then drops it",
			uri:      "/test/path",
			defaults: Of("APIKey", ""),
			want:     "/test/path",
		},
		{
			name:     "given no defaults, then only normalizes the leading slash",
			uri:      "test/path?parameter=value",
			defaults: nil,
			want:     "/test/path?parameter=value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeDefaults(tt.uri, tt.defaults)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams(t *testing.T) {
	t.Run("given Add, then original is not modified", func(t *testing.T) {
		base := Of("a", "1")
		extended := base.Add("b", "2")

		assert.Len(t, base, 1)
		assert.Equal(t, Of("a", "1", "b", "2"), extended)
	})

	t.Run("given odd pair count, then trailing name has empty value", func(t *testing.T) {
		params := Of("a", "1", "b")

		assert.True(t, params.Has("b"))
		_, ok := params.Get("b")
		assert.False(t, ok)
	})
}
