package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/infracollect/zipexport/apis/v1"
)

func TestExpandTemplates_String(t *testing.T) {
	type S struct {
		Path string `template:""`
	}
	in := S{Path: "${EXPORT}/data"}
	err := ExpandTemplates(&in, map[string]string{"EXPORT": "abc123"})
	require.NoError(t, err)
	assert.Equal(t, S{Path: "abc123/data"}, in)
}

func TestExpandTemplates_StringWithoutTagNotExpanded(t *testing.T) {
	type S struct {
		Path string
	}
	in := S{Path: "${X}"}
	err := ExpandTemplates(&in, map[string]string{"X": "y"})
	require.NoError(t, err)
	assert.Equal(t, "${X}", in.Path)
}

func TestExpandTemplates_TemplateDashSkipped(t *testing.T) {
	type S struct {
		Path string `template:"-"`
	}
	in := S{Path: "${X}"}
	err := ExpandTemplates(&in, map[string]string{"X": "y"})
	require.NoError(t, err)
	assert.Equal(t, "${X}", in.Path)
}

func TestExpandTemplates_Map(t *testing.T) {
	type S struct {
		Headers map[string]string
		Nil     map[string]string
		Ints    map[string]int
	}
	in := S{
		Headers: map[string]string{"Authorization": "Bearer ${TOKEN}"},
		Ints:    map[string]int{"k": 1},
	}
	err := ExpandTemplates(&in, map[string]string{"TOKEN": "secret"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer secret"}, in.Headers)
	assert.Nil(t, in.Nil)
	assert.Equal(t, map[string]int{"k": 1}, in.Ints)
}

func TestExpandTemplates_NestedStructs(t *testing.T) {
	type Inner struct {
		Path string `template:""`
	}
	type Outer struct {
		Inner   Inner
		Pointer *Inner
		Nil     *Inner
		Count   int
	}
	in := Outer{Inner: Inner{Path: "${X}"}, Pointer: &Inner{Path: "${X}-ptr"}, Count: 42}
	err := ExpandTemplates(&in, map[string]string{"X": "expanded"})
	require.NoError(t, err)
	assert.Equal(t, "expanded", in.Inner.Path)
	assert.Equal(t, "expanded-ptr", in.Pointer.Path)
	assert.Nil(t, in.Nil)
	assert.Equal(t, 42, in.Count)
}

func TestExpandTemplates_TopLevelNil(t *testing.T) {
	type S struct {
		Path string `template:""`
	}
	var in *S
	require.NoError(t, ExpandTemplates(in, map[string]string{}))
}

func TestExpandTemplates_NotStruct(t *testing.T) {
	in := "${X}"
	require.Error(t, ExpandTemplates(&in, map[string]string{"X": "y"}))
}

func TestExpandTemplates_MissingVariable(t *testing.T) {
	type S struct {
		Path string `template:""`
	}
	in := S{Path: "${MISSING}"}
	err := ExpandTemplates(&in, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
	assert.Contains(t, err.Error(), "Path")
}

func TestExpandTemplates_ExportJob(t *testing.T) {
	t.Run("expands storage and callback fields", func(t *testing.T) {
		job := v1.ExportJob{
			ExportID:   "${EXPORT_ID}",
			UploadName: "${EXPORT_ID}-${JOB_DATE_ISO8601}",
			Storage: v1.StorageSpec{
				Bucket:   "${BUCKET_NAME}",
				Endpoint: "https://${S3_HOST}",
			},
			Callback: v1.CallbackSpec{
				URL:     "https://${API_HOST}/exports/${EXPORT_ID}",
				Headers: map[string]string{"Authorization": "Bearer ${API_TOKEN}"},
			},
		}

		variables := map[string]string{
			"EXPORT_ID":        "abc123",
			"JOB_DATE_ISO8601": "20260124T103000Z",
			"BUCKET_NAME":      "exports-bucket",
			"S3_HOST":          "minio.local",
			"API_HOST":         "api.example.com",
			"API_TOKEN":        "secret123",
		}

		err := ExpandTemplates(&job, variables)
		require.NoError(t, err)

		assert.Equal(t, "abc123", job.ExportID)
		assert.Equal(t, "abc123-20260124T103000Z", job.UploadName)
		assert.Equal(t, "exports-bucket", job.Storage.Bucket)
		assert.Equal(t, "https://minio.local", job.Storage.Endpoint)
		assert.Equal(t, "https://api.example.com/exports/abc123", job.Callback.URL)
		assert.Equal(t, "Bearer secret123", job.Callback.Headers["Authorization"])
	})

	t.Run("error on missing variable", func(t *testing.T) {
		job := v1.ExportJob{
			Callback: v1.CallbackSpec{URL: "https://${MISSING_HOST}"},
		}

		err := ExpandTemplates(&job, map[string]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MISSING_HOST")
	})
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		variables  map[string]string
		want       string
		wantErr    bool
		errContain string
	}{
		{
			name:      "no variables",
			value:     "plain-text",
			variables: map[string]string{},
			want:      "plain-text",
		},
		{
			name:      "single variable",
			value:     "${EXPORT_ID}",
			variables: map[string]string{"EXPORT_ID": "abc123"},
			want:      "abc123",
		},
		{
			name:  "multiple variables",
			value: "${EXPORT_ID}-${JOB_DATE_ISO8601}",
			variables: map[string]string{
				"EXPORT_ID":        "abc123",
				"JOB_DATE_ISO8601": "20260124T103000Z",
			},
			want: "abc123-20260124T103000Z",
		},
		{
			name:       "disallowed env var",
			value:      "${SECRET_KEY}",
			variables:  map[string]string{},
			wantErr:    true,
			errContain: `environment variable "SECRET_KEY" is not in the allowed list`,
		},
		{
			name:      "multiple errors accumulated",
			value:     "${NOT_ALLOWED}${ALSO_NOT_ALLOWED}",
			variables: map[string]string{},
			wantErr:   true,
		},
		{
			name:      "dollar sign without braces uses short form",
			value:     "$PLAIN",
			variables: map[string]string{"PLAIN": "value"},
			want:      "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.value, tt.variables)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContain != "" {
					assert.Contains(t, err.Error(), tt.errContain)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandMap(t *testing.T) {
	got, err := ExpandMap(nil, map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ExpandMap(map[string]string{"Authorization": "Bearer ${TOKEN}", "X-Static": "plain"}, map[string]string{"TOKEN": "abc123"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc123", "X-Static": "plain"}, got)

	_, err = ExpandMap(map[string]string{"Good": "plain", "Bad": "${NOT_ALLOWED}"}, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not in the allowed list")
}
