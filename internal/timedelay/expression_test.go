package timedelay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpression_Render(t *testing.T) {
	tests := []struct {
		name     string
		template string
		opts     []ExpressionOption
		seconds  int
		want     string
	}{
		{name: "plain", template: "sleep %d", seconds: 5, want: "sleep 5"},
		{name: "offset", template: "ping -n %d 127.0.0.1", opts: []ExpressionOption{WithOffset(1)}, seconds: 4, want: "ping -n 5 127.0.0.1"},
		{name: "scale", template: "Thread.sleep(%d);", opts: []ExpressionOption{WithScale(1000)}, seconds: 9, want: "Thread.sleep(9000);"},
		{name: "scale and offset", template: "x%dy", opts: []ExpressionOption{WithScale(3), WithOffset(-2)}, seconds: 4, want: "x10y"},
		{name: "escaped percent", template: "1 LIKE '%%' or SLEEP(%d)", seconds: 8, want: "1 LIKE '%' or SLEEP(8)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpression(tt.template, tt.opts...)
			assert.Equal(t, tt.want, e.Render(tt.seconds))
		})
	}
}

func TestExpression_SettersAndClone(t *testing.T) {
	e := NewExpression("sleep(%d)")
	assert.Equal(t, 0, e.Offset())
	assert.Equal(t, 1, e.Scale())

	c := e.Clone()
	c.SetOffset(2)
	c.SetScale(10)

	assert.Equal(t, "sleep(32)", c.Render(3))
	assert.Equal(t, "sleep(3)", e.Render(3))
	assert.Equal(t, "sleep(%d)", c.Template())
	assert.Contains(t, c.String(), "offset=2")
}

func TestNewExpression_PanicsOnBadTemplate(t *testing.T) {
	for _, tmpl := range []string{"sleep", "sleep(%d) and sleep(%d)", "sleep(%s)", "100%%d"} {
		t.Run(tmpl, func(t *testing.T) {
			assert.Panics(t, func() { NewExpression(tmpl) })
		})
	}
}

func TestReverse(t *testing.T) {
	assert.Equal(t, "", reverse(""))
	assert.Equal(t, "cba", reverse("abc"))
	assert.Equal(t, "éb", reverse("bé"))
}
