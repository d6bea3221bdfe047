package gsplat

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bufferLogger(prefix string, debug bool) (*DefaultLogger, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	l := NewDefaultLogger(prefix, debug)
	l.out = log.New(&out, "", 0)
	l.err = log.New(&errOut, "", 0)
	return l, &out, &errOut
}

func TestDefaultLoggerLevels(t *testing.T) {
	l, out, errOut := bufferLogger("store", false)
	l.Debugf("hidden %d", 1)
	l.Infof("loaded %d", 2)
	l.Warnf("slow")
	l.Errorf("broken")

	assert.Equal(t, "[store] INFO: loaded 2\n", out.String())
	assert.Contains(t, errOut.String(), "[store] WARN: slow")
	assert.Contains(t, errOut.String(), "[store] ERROR: broken")

	l.SetDebug(true)
	l.Debugf("shown")
	assert.Contains(t, out.String(), "DEBUG: shown")
}

func TestWithPrefixSharesOutputs(t *testing.T) {
	l, out, _ := bufferLogger("", true)
	l.Infof("root")
	sub := l.WithPrefix("sorter")
	sub.Debugf("pass")
	assert.Equal(t, "INFO: root\n[sorter] DEBUG: pass\n", out.String())
}

func TestOnceLogger(t *testing.T) {
	l, _, errOut := bufferLogger("", false)
	var once OnceLogger
	assert.True(t, once.Errorf(l, "target", "missing %s", "pipeline"))
	assert.False(t, once.Errorf(l, "target", "missing %s", "pipeline"))
	assert.True(t, once.Errorf(l, "other", "other"))
	assert.Equal(t, 2, strings.Count(errOut.String(), "ERROR"))

	once.Reset()
	assert.True(t, once.Errorf(nil, "target", "nil logger is fine"))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewDefaultLogger("x", false)
	assert.Same(t, l, OrNop(l))
}
