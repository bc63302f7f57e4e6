package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"twc/config"
	"twc/state"
)

const (
	outputExt     = ".html"
	defaultSuffix = ".tw"
)

// buildOutputPath returns path of decorated document under destination
// directory. Name comes either from default naming scheme or from user-defined
// template which may include subdirectories. Every path segment is cleaned and
// if requested transliterated.
func buildOutputPath(values Values, dst string, env *state.LocalEnv) string {
	defaultFile := cleanPathSegment(values.Name+defaultSuffix, env) + outputExt

	if env.Cfg.Document.OutputNameTemplate == "" {
		return filepath.Join(dst, defaultFile)
	}

	expandedName := expandOutputNameTemplate(values, env)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(dst, defaultFile)
	}

	segments := splitPath(expandedName)
	if len(segments) == 0 {
		return filepath.Join(dst, defaultFile)
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, dst)
	for _, segment := range segments {
		parts = append(parts, cleanPathSegment(segment, env))
	}
	parts[len(parts)-1] += outputExt
	return filepath.Join(parts...)
}

func expandOutputNameTemplate(values Values, env *state.LocalEnv) string {
	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Document.OutputNameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(filepath.FromSlash(expandedName))
}

// splitPath returns non empty path segments, ".." segments are dropped so
// template could not escape destination directory.
func splitPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for {
		head, tail := filepath.Split(path)
		if tail != "" && tail != "." && tail != ".." {
			segments = slices.Insert(segments, 0, tail)
		}
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" || head == path {
			break
		}
		path = head
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Document.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
