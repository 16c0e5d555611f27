package worldfile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxphys/velox2d/dynamics"
	"github.com/veloxphys/velox2d/worldfile"
)

const sceneYAML = `
gravity: [0, -10]
bodies:
  - name: ground
    kind: static
    position: [0, -1]
    fixtures:
      - shape:
          kind: box
          half_width: 20
          half_height: 1
  - name: crate
    kind: dynamic
    position: [0, 4]
    fixtures:
      - shape:
          kind: box
          half_width: 0.5
          half_height: 0.5
        density: 1
        friction: 0.3
  - name: marble
    kind: dynamic
    position: [2, 6]
    bullet: true
    fixtures:
      - shape:
          kind: circle
          radius: 0.25
        density: 2
        restitution: 0.4
`

func TestParseKeepsDefaults(t *testing.T) {
	doc, err := worldfile.Parse([]byte("gravity: [0, -3]\n"))
	require.NoError(t, err)

	assert.Equal(t, [2]float64{0, -3}, doc.Gravity)

	// Step settings absent from the file stay at the stock tuning.
	conf := doc.StepConf()
	def := dynamics.DefaultStepConf()
	assert.Equal(t, def.Dt, conf.Dt)
	assert.Equal(t, def.VelocityIterations, conf.VelocityIterations)
	assert.Equal(t, def.WarmStarting, conf.WarmStarting)
	assert.Equal(t, def.AllowSleep, conf.AllowSleep)
}

func TestParseScene(t *testing.T) {
	doc, err := worldfile.Parse([]byte(sceneYAML))
	require.NoError(t, err)
	require.Len(t, doc.Bodies, 3)

	assert.Equal(t, "ground", doc.Bodies[0].Name)
	assert.Equal(t, "static", doc.Bodies[0].Kind)
	assert.True(t, doc.Bodies[2].Bullet)
	require.Len(t, doc.Bodies[2].Fixtures, 1)
	assert.Equal(t, 0.25, doc.Bodies[2].Fixtures[0].Shape.Radius)
}

func TestBuildScene(t *testing.T) {
	doc, err := worldfile.Parse([]byte(sceneYAML))
	require.NoError(t, err)

	world, err := doc.Build()
	require.NoError(t, err)

	assert.Equal(t, 3, world.BodyCount())
	assert.Equal(t, 3, world.ProxyCount())

	var crate *dynamics.Body
	world.EachBody(func(b *dynamics.Body) bool {
		if b.UserData() == "crate" {
			crate = b
		}
		return true
	})
	require.NotNil(t, crate)
	assert.Equal(t, dynamics.DynamicBody, crate.Kind())
	assert.InDelta(t, 4.0, crate.Position()[1], 1e-12)
	assert.InDelta(t, 1.0, crate.Mass(), 1e-9)

	// The built world actually simulates: the crate lands on the ground.
	conf := doc.StepConf()
	for i := 0; i < 300; i++ {
		_, err := world.Step(conf)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.5, crate.Position()[1], 0.02)
}

func TestRoundTrip(t *testing.T) {
	doc, err := worldfile.Parse([]byte(sceneYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, worldfile.Save(&buf, doc))

	again, err := worldfile.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestSaveLoadFile(t *testing.T) {
	path := t.TempDir() + "/scene.yaml"

	doc := worldfile.Default()
	doc.Bodies = append(doc.Bodies, worldfile.Body{
		Name: "ball",
		Kind: "dynamic",
		Fixtures: []worldfile.Fixture{{
			Shape:   worldfile.Shape{Kind: "circle", Radius: 1.0},
			Density: 1.0,
		}},
	})
	require.NoError(t, worldfile.SaveFile(path, doc))

	loaded, err := worldfile.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestUnknownKinds(t *testing.T) {
	doc, err := worldfile.Parse([]byte(`
bodies:
  - kind: squishy
    fixtures:
      - shape: {kind: box, half_width: 1, half_height: 1}
`))
	require.NoError(t, err)
	_, err = doc.Build()
	assert.Error(t, err)

	doc, err = worldfile.Parse([]byte(`
bodies:
  - kind: static
    fixtures:
      - shape: {kind: blob}
`))
	require.NoError(t, err)
	_, err = doc.Build()
	assert.Error(t, err)
}

func TestBuildErrorNamesBodyAndFixture(t *testing.T) {
	doc, err := worldfile.Parse([]byte(`
bodies:
  - kind: static
    fixtures:
      - shape: {kind: polygon, vertices: [[0, 0], [1, 0]]}
`))
	require.NoError(t, err)

	_, err = doc.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body 0 fixture 0")
}

func TestMalformedYAML(t *testing.T) {
	_, err := worldfile.Parse([]byte("gravity: [0, -10"))
	assert.Error(t, err)
}
