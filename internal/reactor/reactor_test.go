package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReactorWaitReportsPipeReadability(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Skipf("no reactor backend on this platform: %v", err)
	}
	defer r.Close()

	rd, wr, err := os.Pipe()
	require.NoError(t, err)
	defer rd.Close()
	defer wr.Close()

	rfd := int(rd.Fd())
	require.NoError(t, r.AddRead(rfd))

	_, err = wr.Write([]byte("x"))
	require.NoError(t, err)

	events, err := r.Wait(make([]Event, 0, 16), time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	found := false
	for _, ev := range events {
		if ev.FD == rfd && ev.Kind&Readable != 0 {
			found = true
		}
	}
	require.True(t, found, "expected the pipe read fd to be reported readable")

	require.NoError(t, r.Del(rfd))
}
