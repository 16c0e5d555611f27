// Package worldfile loads and saves YAML world definitions: step
// configuration, gravity, and bodies with their fixtures. Absent fields
// keep the same defaults the dynamics package uses, so a minimal file
// stays minimal when saved back.
package worldfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veloxphys/velox2d/dynamics"
	"github.com/veloxphys/velox2d/geom"
	"github.com/veloxphys/velox2d/shapes"
)

// Document is the root of a world file.
type Document struct {
	Step    Step      `yaml:"step"`
	Gravity [2]float64 `yaml:"gravity,flow"`
	Bodies  []Body     `yaml:"bodies,omitempty"`
}

// Step mirrors dynamics.StepConf.
type Step struct {
	Dt                 float64 `yaml:"dt"`
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
	WarmStarting       bool    `yaml:"warm_starting"`
	Continuous         bool    `yaml:"continuous"`
	AllowSleep         bool    `yaml:"allow_sleep"`
}

// Body is one body definition plus its fixtures.
type Body struct {
	Name string `yaml:"name,omitempty"`

	// Kind is "static", "kinematic" or "dynamic".
	Kind string `yaml:"kind"`

	Position [2]float64 `yaml:"position,flow"`
	Angle    float64    `yaml:"angle,omitempty"`

	LinearVelocity  [2]float64 `yaml:"linear_velocity,flow,omitempty"`
	AngularVelocity float64    `yaml:"angular_velocity,omitempty"`

	LinearDamping  float64 `yaml:"linear_damping,omitempty"`
	AngularDamping float64 `yaml:"angular_damping,omitempty"`

	GravityScale  *float64 `yaml:"gravity_scale,omitempty"`
	FixedRotation bool     `yaml:"fixed_rotation,omitempty"`
	Bullet        bool     `yaml:"bullet,omitempty"`
	AllowSleep    *bool    `yaml:"allow_sleep,omitempty"`

	Fixtures []Fixture `yaml:"fixtures,omitempty"`
}

// Fixture is one fixture definition.
type Fixture struct {
	Shape       Shape    `yaml:"shape"`
	Density     float64  `yaml:"density,omitempty"`
	Friction    *float64 `yaml:"friction,omitempty"`
	Restitution float64  `yaml:"restitution,omitempty"`
	Sensor      bool     `yaml:"sensor,omitempty"`

	Category uint16 `yaml:"category,omitempty"`
	Mask     uint16 `yaml:"mask,omitempty"`
	Group    int16  `yaml:"group,omitempty"`
}

// Shape selects one shape kind: "circle", "box", "polygon", "edge" or
// "chain". Only the fields of the selected kind are read.
type Shape struct {
	Kind string `yaml:"kind"`

	// circle
	Radius float64    `yaml:"radius,omitempty"`
	Center [2]float64 `yaml:"center,flow,omitempty"`

	// box
	HalfWidth  float64 `yaml:"half_width,omitempty"`
	HalfHeight float64 `yaml:"half_height,omitempty"`

	// polygon, edge (2 vertices), chain
	Vertices [][2]float64 `yaml:"vertices,flow,omitempty"`

	// chain
	Loop bool `yaml:"loop,omitempty"`
}

// Default returns a document holding the conventional step tuning and
// earth-like gravity, with no bodies.
func Default() Document {
	conf := dynamics.DefaultStepConf()
	return Document{
		Step: Step{
			Dt:                 conf.Dt,
			VelocityIterations: conf.VelocityIterations,
			PositionIterations: conf.PositionIterations,
			WarmStarting:       conf.WarmStarting,
			Continuous:         conf.Continuous,
			AllowSleep:         conf.AllowSleep,
		},
		Gravity: [2]float64{0.0, -10.0},
	}
}

// Parse decodes a document, filling absent fields from Default.
func Parse(data []byte) (Document, error) {
	doc := Default()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("worldfile: %w", err)
	}
	return doc, nil
}

// Load reads and parses a document from r.
func Load(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("worldfile: %w", err)
	}
	return Parse(data)
}

// LoadFile reads and parses the file at path.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("worldfile: %w", err)
	}
	return Parse(data)
}

// Save writes the document as YAML.
func Save(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("worldfile: %w", err)
	}
	return enc.Close()
}

// SaveFile writes the document to path.
func SaveFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("worldfile: %w", err)
	}
	if err := Save(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// StepConf converts the step section, taking the unlisted tunables from
// dynamics.DefaultStepConf.
func (d Document) StepConf() dynamics.StepConf {
	conf := dynamics.DefaultStepConf()
	conf.Dt = d.Step.Dt
	conf.VelocityIterations = d.Step.VelocityIterations
	conf.PositionIterations = d.Step.PositionIterations
	conf.WarmStarting = d.Step.WarmStarting
	conf.Continuous = d.Step.Continuous
	conf.AllowSleep = d.Step.AllowSleep
	return conf
}

// Build constructs a world holding the document's bodies and fixtures.
func (d Document) Build() (*dynamics.World, error) {
	wdef := dynamics.DefaultWorldDef()
	wdef.Gravity = geom.Vec2{d.Gravity[0], d.Gravity[1]}
	w := dynamics.NewWorld(wdef)

	for i, bd := range d.Bodies {
		def, err := bd.bodyDef()
		if err != nil {
			return nil, fmt.Errorf("worldfile: body %d: %w", i, err)
		}
		body, err := w.CreateBody(def)
		if err != nil {
			return nil, fmt.Errorf("worldfile: body %d: %w", i, err)
		}
		for j, fd := range bd.Fixtures {
			fdef, err := fd.fixtureDef()
			if err != nil {
				return nil, fmt.Errorf("worldfile: body %d fixture %d: %w", i, j, err)
			}
			if _, err := body.CreateFixture(fdef); err != nil {
				return nil, fmt.Errorf("worldfile: body %d fixture %d: %w", i, j, err)
			}
		}
	}
	return w, nil
}

func (bd Body) bodyDef() (dynamics.BodyDef, error) {
	def := dynamics.DefaultBodyDef()

	switch bd.Kind {
	case "", "static":
		def.Kind = dynamics.StaticBody
	case "kinematic":
		def.Kind = dynamics.KinematicBody
	case "dynamic":
		def.Kind = dynamics.DynamicBody
	default:
		return def, fmt.Errorf("unknown body kind %q", bd.Kind)
	}

	def.Position = geom.Vec2{bd.Position[0], bd.Position[1]}
	def.Angle = bd.Angle
	def.LinearVelocity = geom.Vec2{bd.LinearVelocity[0], bd.LinearVelocity[1]}
	def.AngularVelocity = bd.AngularVelocity
	def.LinearDamping = bd.LinearDamping
	def.AngularDamping = bd.AngularDamping
	def.FixedRotation = bd.FixedRotation
	def.Bullet = bd.Bullet
	if bd.GravityScale != nil {
		def.GravityScale = *bd.GravityScale
	}
	if bd.AllowSleep != nil {
		def.AllowSleep = *bd.AllowSleep
	}
	def.UserData = bd.Name
	return def, nil
}

func (fd Fixture) fixtureDef() (dynamics.FixtureDef, error) {
	def := dynamics.DefaultFixtureDef()

	shape, err := fd.Shape.build()
	if err != nil {
		return def, err
	}
	def.Shape = shape
	def.Density = fd.Density
	if fd.Friction != nil {
		def.Friction = *fd.Friction
	}
	def.Restitution = fd.Restitution
	def.Sensor = fd.Sensor

	if fd.Category != 0 {
		def.Filter.Category = fd.Category
	}
	if fd.Mask != 0 {
		def.Filter.Mask = fd.Mask
	}
	def.Filter.Group = fd.Group
	return def, nil
}

func (sd Shape) build() (shapes.Shape, error) {
	switch sd.Kind {
	case "circle":
		if sd.Radius <= 0.0 {
			return nil, fmt.Errorf("circle radius must be positive")
		}
		c := shapes.NewCircle(sd.Radius)
		c.P = geom.Vec2{sd.Center[0], sd.Center[1]}
		return c, nil

	case "box":
		if sd.HalfWidth <= 0.0 || sd.HalfHeight <= 0.0 {
			return nil, fmt.Errorf("box half extents must be positive")
		}
		return shapes.NewBox(sd.HalfWidth, sd.HalfHeight), nil

	case "polygon":
		return shapes.NewPolygon(verts(sd.Vertices))

	case "edge":
		if len(sd.Vertices) != 2 {
			return nil, fmt.Errorf("edge needs exactly 2 vertices, got %d", len(sd.Vertices))
		}
		v := verts(sd.Vertices)
		return shapes.NewEdge(v[0], v[1]), nil

	case "chain":
		if sd.Loop {
			return shapes.NewLoop(verts(sd.Vertices))
		}
		return shapes.NewChain(verts(sd.Vertices))

	default:
		return nil, fmt.Errorf("unknown shape kind %q", sd.Kind)
	}
}

func verts(in [][2]float64) []geom.Vec2 {
	out := make([]geom.Vec2, len(in))
	for i, v := range in {
		out[i] = geom.Vec2{v[0], v[1]}
	}
	return out
}
