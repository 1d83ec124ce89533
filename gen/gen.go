// Package gen writes the glue that lets a package's controllers be served:
// a runtime manifest and a Go file that embeds it and constructs each
// controller.
package gen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"go/format"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/bjaus/apimda/metadata"
)

// File names written next to the controllers.
const (
	GoFile       = "apimda_gen.go"
	ManifestFile = "apimda_manifest.json"
)

// ErrNoControllers is returned for a package without controllers.
var ErrNoControllers = errors.New("package declares no controllers")

// Options controls Write.
type Options struct {
	// DryRun plans the files without writing them.
	DryRun bool
	Logger logrus.FieldLogger
}

// PlannedFile is a file Write produced or would produce.
type PlannedFile struct {
	Path string
	Size int
}

// Files holds the generated content for one package.
type Files struct {
	Dir      string
	Go       []byte
	Manifest []byte
}

// Package renders the glue for the controllers declared in pkg.
func Package(app *metadata.App, pkg string) (*Files, error) {
	var controllers []*metadata.Controller
	for _, c := range app.Controllers {
		if c.Package == pkg {
			controllers = append(controllers, c)
		}
	}
	if len(controllers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoControllers, pkg)
	}

	manifest, err := json.MarshalIndent(app.PackageRuntime(pkg), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	data := fileData{Package: controllers[0].PackageName, Manifest: ManifestFile}
	for _, c := range controllers {
		data.Factories = append(data.Factories, factoryData{Name: c.Name, Body: factoryBody(c)})
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", GoFile, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", GoFile, err)
	}

	dir := ""
	if controllers[0].SourceFile != "" {
		dir = filepath.Dir(controllers[0].SourceFile)
	}
	return &Files{Dir: dir, Go: src, Manifest: append(manifest, '\n')}, nil
}

// Write renders and writes the glue of every package in app.
func Write(app *metadata.App, opts Options) ([]PlannedFile, error) {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	log = log.WithField("component", "gen")

	var planned []PlannedFile
	for _, pkg := range app.Packages() {
		files, err := Package(app, pkg)
		if err != nil {
			return nil, err
		}
		if files.Dir == "" {
			return nil, fmt.Errorf("package %s: unknown source directory", pkg)
		}

		out := map[string][]byte{
			filepath.Join(files.Dir, GoFile):       files.Go,
			filepath.Join(files.Dir, ManifestFile): files.Manifest,
		}
		for _, name := range []string{GoFile, ManifestFile} {
			path := filepath.Join(files.Dir, name)
			planned = append(planned, PlannedFile{Path: path, Size: len(out[path])})
			if opts.DryRun {
				continue
			}
			if err := os.WriteFile(path, out[path], 0o644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", path, err)
			}
		}
		log.WithFields(logrus.Fields{
			"package": pkg,
			"dir":     files.Dir,
			"dry_run": opts.DryRun,
		}).Info("Generated glue")
	}
	return planned, nil
}

type fileData struct {
	Package   string
	Manifest  string
	Factories []factoryData
}

type factoryData struct {
	Name string
	Body string
}

// factoryBody returns the statements of a runtime.Factory building c from
// its configuration values.
func factoryBody(c *metadata.Controller) string {
	if c.CtorName == "" {
		return fmt.Sprintf("return &%s{}, nil", c.Name)
	}

	args := make([]string, len(c.CtorEnvNames))
	for i := range c.CtorEnvNames {
		args[i] = fmt.Sprintf("config[%d]", i)
	}
	call := fmt.Sprintf("%s(%s)", c.CtorName, strings.Join(args, ", "))

	var b strings.Builder
	switch {
	case c.CtorReturnsError:
		fmt.Fprintf(&b, "c, err := %s\nif err != nil {\nreturn nil, err\n}\n", call)
	default:
		fmt.Fprintf(&b, "c := %s\n", call)
	}
	if c.CtorPointer {
		b.WriteString("return c, nil")
	} else {
		b.WriteString("return &c, nil")
	}
	return b.String()
}

var fileTemplate = template.Must(template.New(GoFile).Parse(`// Code generated by apimda. DO NOT EDIT.

package {{ .Package }}

import (
	_ "embed"

	"github.com/bjaus/apimda/runtime"
)

//go:embed {{ .Manifest }}
var apimdaManifest []byte

// ApimdaApp returns the runtime manifest of this package's controllers.
func ApimdaApp() (*runtime.App, error) {
	return runtime.Load(apimdaManifest)
}

// ApimdaFactories returns a factory for each controller in this package.
func ApimdaFactories() map[string]runtime.Factory {
	return map[string]runtime.Factory{
{{- range .Factories }}
		"{{ .Name }}": func(config []string) (any, error) {
			{{ .Body }}
		},
{{- end }}
	}
}
`))
