package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kiln/internal/asset"
	"kiln/internal/config"
	"kiln/internal/cookerr"
	"kiln/internal/logging"
	"kiln/internal/platform"
)

// Loader materializes source packages into a Universe, loading referenced
// packages transitively.
type Loader struct {
	universe *asset.Universe
	files    map[string]File
	logger   *slog.Logger
}

// NewLoader indexes files by package name. When two files share a name the
// first in scan order wins.
func NewLoader(universe *asset.Universe, files []File, logger *slog.Logger) *Loader {
	index := make(map[string]File, len(files))
	for _, file := range files {
		key := strings.ToLower(file.Name)
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = file
	}
	return &Loader{
		universe: universe,
		files:    index,
		logger:   logging.NewComponentLogger(logger, "loader"),
	}
}

// Universe returns the arena the loader populates.
func (l *Loader) Universe() *asset.Universe {
	return l.universe
}

// Lookup returns the source file backing a package name.
func (l *Loader) Lookup(name string) (File, bool) {
	file, ok := l.files[strings.ToLower(strings.TrimSpace(name))]
	return file, ok
}

// Load returns the live package named name, reading it from disk when it is
// not already resident. Missing packages wrap cookerr.ErrNotFound.
func (l *Loader) Load(ctx context.Context, name string) (*asset.Package, error) {
	if pkg, ok := l.universe.FindPackage(name); ok {
		return pkg, nil
	}
	file, ok := l.Lookup(name)
	if !ok {
		return nil, cookerr.Wrap(cookerr.ErrNotFound, "load", "lookup", fmt.Sprintf("package %q", name), nil)
	}
	doc, err := ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file.Name, err)
	}
	return l.materialize(ctx, file, doc)
}

func (l *Loader) materialize(ctx context.Context, file File, doc *Document) (*asset.Package, error) {
	pkg, err := l.universe.NewPackage(file.Name, file.Path)
	if err != nil {
		return nil, err
	}
	objects := make([]*asset.Object, len(doc.Objects))
	for i := range doc.Objects {
		obj, err := l.newObject(pkg, &doc.Objects[i])
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", file.Name, err)
		}
		objects[i] = obj
	}
	// Objects exist before references resolve, so reference cycles back into
	// this package find it live.
	for i, obj := range objects {
		for _, ref := range doc.Objects[i].Refs {
			target, err := l.resolve(ctx, pkg, ref)
			if err != nil {
				logging.WarnWithContext(logging.WithContext(ctx, l.logger), "dropping unresolved reference",
					"source_reference",
					logging.String("object", l.universe.Path(obj)),
					logging.String("reference", ref),
					logging.Error(err),
					logging.String(logging.FieldImpact, "reference removed from cooked output"),
				)
				continue
			}
			l.universe.AddRef(obj, target.ID)
		}
	}
	l.logger.Debug("package loaded",
		logging.String(logging.FieldPackage, pkg.Name),
		logging.Int("objects", len(objects)),
	)
	return pkg, nil
}

func (l *Loader) resolve(ctx context.Context, owner *asset.Package, ref string) (*asset.Object, error) {
	pkgName, objName, ok := strings.Cut(strings.TrimSpace(ref), ".")
	if !ok || pkgName == "" || objName == "" {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	if !strings.EqualFold(pkgName, owner.Name) {
		if _, err := l.Load(ctx, pkgName); err != nil {
			return nil, err
		}
	}
	obj, found := l.universe.FindObject(pkgName + "." + objName)
	if !found {
		return nil, fmt.Errorf("object %q not found", ref)
	}
	return obj, nil
}

func (l *Loader) newObject(pkg *asset.Package, rec *ObjectRecord) (*asset.Object, error) {
	kind, err := asset.ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	obj, err := l.universe.NewObject(pkg.ID, rec.Name, kind)
	if err != nil {
		return nil, err
	}
	if rec.Public {
		obj.Set(asset.FlagPublic)
	}
	if rec.Template {
		obj.Set(asset.FlagTemplate)
	}
	if rec.Language != "" {
		suffix, err := config.LanguageSuffix(rec.Language)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", rec.Name, err)
		}
		obj.Language = suffix
	}
	obj.Blob = rec.Blob
	obj.EditorData = rec.EditorData
	if rec.World != nil {
		obj.World = &asset.World{StreamingLevels: append([]string(nil), rec.World.StreamingLevels...)}
	}

	switch kind {
	case asset.KindTexture:
		if rec.Texture == nil {
			return nil, fmt.Errorf("texture %s has no texture data", rec.Name)
		}
		obj.Texture = buildTexture(rec.Texture)
	case asset.KindMesh, asset.KindSkeletalMesh:
		if rec.Mesh == nil {
			return nil, fmt.Errorf("mesh %s has no mesh data", rec.Name)
		}
		obj.Mesh = buildMesh(rec.Mesh)
	case asset.KindSound:
		if rec.Sound == nil {
			return nil, fmt.Errorf("sound %s has no sound data", rec.Name)
		}
		obj.Sound = &asset.Sound{
			RawWAV:     rec.Sound.WAV,
			Compressed: make(map[platform.ID][]byte),
		}
	case asset.KindMovie:
		if rec.Movie == nil {
			return nil, fmt.Errorf("movie %s has no movie data", rec.Name)
		}
		obj.Movie = &asset.Movie{
			Codec: strings.ToLower(rec.Movie.Codec),
			Stream: &asset.BulkPayload{
				Name:         asset.MovieStreamName,
				Data:         rec.Movie.Data,
				ElementCount: len(rec.Movie.Data),
			},
		}
	}
	return obj, nil
}

func buildTexture(rec *TextureRecord) *asset.Texture {
	tex := &asset.Texture{
		Format:      strings.ToUpper(rec.Format),
		SizeX:       rec.SizeX,
		SizeY:       rec.SizeY,
		LODGroup:    strings.ToLower(rec.LODGroup),
		NeverStream: rec.NeverStream,
		Mips:        make([]*asset.BulkPayload, len(rec.Mips)),
	}
	for i, data := range rec.Mips {
		tex.Mips[i] = &asset.BulkPayload{
			Name:         asset.MipName(i),
			Data:         data,
			ElementCount: len(data),
		}
	}
	tex.MipTailBase = max(0, len(rec.Mips)-1)
	return tex
}

func buildMesh(rec *MeshRecord) *asset.Mesh {
	mesh := &asset.Mesh{
		LODs:         make([]asset.MeshLOD, len(rec.LODs)),
		RawTriangles: rec.RawTriangles,
	}
	for i, lod := range rec.LODs {
		sections := make([]asset.MeshSection, len(lod.Sections))
		for j, section := range lod.Sections {
			sections[j] = asset.MeshSection{BaseIndex: section.BaseIndex, NumTriangles: section.NumTriangles}
		}
		mesh.LODs[i] = asset.MeshLOD{
			Indices:  append([]uint16(nil), lod.Indices...),
			Sections: sections,
		}
	}
	return mesh
}
