package sprite

import (
	"fmt"

	"github.com/spaghettifunk/anima-quad/engine/assets/loaders"
	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/math"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

const (
	DefaultTexturePath = "resource/texture/test.png"
	vertexCount        = 4
)

// Renderer is the part of the render pipeline a sprite draws with.
type Renderer interface {
	CreateVertexBuffer(vertexCount uint32) (renderer.Handle, error)
	CreateTexture(t *metadata.Texture) (renderer.Handle, error)
	Release(h renderer.Handle) error
	WriteVertices(h renderer.Handle, vertices []metadata.Vertex) error

	SetDepthMode(d renderer.DepthMode) error
	SetBlendMode(b renderer.BlendMode) error
	BindVertexBuffer(h renderer.Handle) error
	SetTopology(t renderer.Topology) error
	SetMatrixWorldViewProjection2D() error
	SetMaterial(m *metadata.Material) error
	BindTexture(slot uint32, h renderer.Handle) error
	Draw(vertexCount, firstVertex uint32) error
}

var _ Renderer = (*renderer.Pipeline)(nil)

// TextureSource loads image resources, the asset manager is one.
type TextureSource interface {
	LoadAsset(name string, params interface{}) (*metadata.Resource, error)
}

type fileSource struct {
	loader loaders.ImageLoader
}

func (fs *fileSource) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	return fs.loader.Load(name, params)
}

// Sprite is a textured screen-aligned quad.
type Sprite struct {
	TexturePath string
	// Position is the center of the quad, Scale its full width and height.
	Position math.Vec2
	Scale    math.Vec2
	// Texcoord and Texsize select the texture region.
	Texcoord math.Vec2
	Texsize  math.Vec2
	Color    math.Vec4
	// Rotation around Position in radians.
	Rotation float32

	Texture *metadata.Texture

	source        TextureSource
	vertexBuffer  renderer.Handle
	textureHandle renderer.Handle
	vertices      [vertexCount]metadata.Vertex
	loaded        bool
}

// New returns the sample texture sprite. A nil source reads the texture
// straight from disk.
func New(source TextureSource) *Sprite {
	if source == nil {
		source = &fileSource{}
	}
	return &Sprite{
		TexturePath: DefaultTexturePath,
		Position:    math.NewVec2(480, 270),
		Scale:       math.NewVec2(720, 405),
		Texcoord:    math.NewVec2(0, 0),
		Texsize:     math.NewVec2(1, 1),
		Color:       math.NewVec4One(),
		source:      source,
	}
}

// Initialize loads the texture and creates the GPU objects of the sprite. It
// only marks the sprite loaded when both the texture and the vertex buffer
// exist.
func (s *Sprite) Initialize(r Renderer) error {
	if s.loaded {
		return nil
	}

	res, err := s.source.LoadAsset(s.TexturePath, &metadata.ImageResourceParams{FlipY: false})
	if err != nil {
		core.LogError("failed to load sprite texture '%s': %s", s.TexturePath, err)
		return err
	}
	img, ok := res.Data.(*metadata.ImageResourceData)
	if !ok || !img.Valid() {
		return fmt.Errorf("%s: %w: not an image", s.TexturePath, core.ErrAssetLoad)
	}
	texture := metadata.NewTextureFromImage(res.Name, img)

	th, err := r.CreateTexture(texture)
	if err != nil {
		core.LogError("failed to create texture '%s': %s", s.TexturePath, err)
		return err
	}

	vb, err := r.CreateVertexBuffer(vertexCount)
	if err != nil {
		core.LogError("failed to create sprite vertex buffer: %s", err)
		if rerr := r.Release(th); rerr != nil {
			core.LogWarn("failed to release texture: %s", rerr)
		}
		return err
	}

	s.Texture = texture
	s.textureHandle = th
	s.vertexBuffer = vb
	s.loaded = true
	core.LogDebug("sprite loaded '%s' (%dx%d, id %s)", s.TexturePath, texture.Width, texture.Height, texture.ID)
	return nil
}

// Update is called once per step before Draw.
func (s *Sprite) Update() {}

// Draw renders the quad with depth writes off. Depth writes are enabled again
// on return, also when a step fails.
func (s *Sprite) Draw(r Renderer) (err error) {
	if !s.loaded {
		return nil
	}

	if err := r.SetDepthMode(renderer.DepthModeDisabled); err != nil {
		return err
	}
	defer func() {
		if derr := r.SetDepthMode(renderer.DepthModeEnabled); err == nil {
			err = derr
		}
	}()

	if err := r.SetBlendMode(renderer.BlendModeNone); err != nil {
		return err
	}

	if err := r.BindVertexBuffer(s.vertexBuffer); err != nil {
		return err
	}
	if err := r.SetTopology(renderer.TopologyTriangleStrip); err != nil {
		return err
	}

	if err := r.SetMatrixWorldViewProjection2D(); err != nil {
		return err
	}
	if err := r.SetMaterial(metadata.NewMaterial()); err != nil {
		return err
	}
	if err := r.BindTexture(0, s.textureHandle); err != nil {
		return err
	}

	s.SetAnchorPointCenter()
	if err := r.WriteVertices(s.vertexBuffer, s.vertices[:]); err != nil {
		return err
	}
	return r.Draw(vertexCount, 0)
}

// SetAnchorPointCenter lays the quad corners out around Position in triangle
// strip order.
func (s *Sprite) SetAnchorPointCenter() {
	corners := math.QuadCorners(s.Position, s.Scale, s.Rotation)
	texcoords := math.QuadTexcoords(s.Texcoord, s.Texsize)
	for i := range s.vertices {
		s.vertices[i] = metadata.Vertex{
			Position: math.NewVec3(corners[i].X, corners[i].Y, 0),
			Color:    s.Color,
			Texcoord: texcoords[i],
		}
	}
}

func (s *Sprite) Vertices() [vertexCount]metadata.Vertex {
	return s.vertices
}

func (s *Sprite) Loaded() bool {
	return s.loaded
}

// Terminate releases the texture and then the vertex buffer. It does nothing
// if the sprite is not loaded.
func (s *Sprite) Terminate(r Renderer) error {
	if !s.loaded {
		return nil
	}
	var firstErr error
	for _, h := range []renderer.Handle{s.textureHandle, s.vertexBuffer} {
		if err := r.Release(h); err != nil {
			core.LogWarn("failed to release sprite object %d: %s", h, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.textureHandle = renderer.InvalidHandle
	s.vertexBuffer = renderer.InvalidHandle
	s.Texture = nil
	s.loaded = false
	return firstErr
}

// Reload terminates the sprite and loads its texture again.
func (s *Sprite) Reload(r Renderer) error {
	if err := s.Terminate(r); err != nil {
		return err
	}
	return s.Initialize(r)
}
