package sensor

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sensorkit/pkg/channel"
)

func TestStreamTest_Echo(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), fastOptions()...)
	require.NoError(t, err)

	var out bytes.Buffer
	c := channel.New("serial", channel.Duplex(strings.NewReader("hi!cignored"), &out))
	defer c.Close()

	idx, err := s.AddChannel(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Stream test: type to echo, c to continue\r\nhi!\r\n", out.String())
}

func TestAddChannel_FailedStreamTestRemoves(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), fastOptions(WithRecorder(rec))...)
	require.NoError(t, err)

	c := channel.New("dead", channel.Duplex(strings.NewReader(""), io.Discard))
	defer c.Close()

	idx, err := s.AddChannel(context.Background(), c)
	assert.Equal(t, -1, idx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, s.Channels())
	assert.Equal(t, 1, rec.channelErrors)
}

func TestStreamTest_Cancelled(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), fastOptions()...)
	require.NoError(t, err)

	con := &console{hold: true}
	idx, err := s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.StreamTest(ctx, idx), context.DeadlineExceeded)
}

func TestSensor_ChannelCapacity(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7))
	require.NoError(t, err)

	for i := 0; i < channel.MaxStreams; i++ {
		idx, err := s.AttachChannel((&console{}).channel("c"))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	_, err = s.AttachChannel((&console{}).channel("overflow"))
	assert.ErrorIs(t, err, channel.ErrCapacity)

	require.NoError(t, s.RemoveChannel(2))
	idx, err := s.AttachChannel((&console{}).channel("again"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	assert.ErrorIs(t, s.RemoveChannel(channel.MaxStreams), channel.ErrNoChannel)
}

func TestPrintReadingAndPrintAll(t *testing.T) {
	p := customProfile(scripted(2, 3), 5, 7)
	p.Slope = 100
	s, err := NewCustom(0, p, WithLabel("EC"))
	require.NoError(t, err)

	a, b := &console{}, &console{}
	_, err = s.AttachChannel(a.channel("a"))
	require.NoError(t, err)
	_, err = s.AttachChannel(b.channel("b"))
	require.NoError(t, err)

	require.NoError(t, s.PrintReading(1))
	assert.Empty(t, a.lines)
	assert.Equal(t, []string{"EC: 200.000u\r\n"}, b.lines)

	require.NoError(t, s.PrintAll())
	assert.Equal(t, []string{"EC: 300.000u\r\n"}, a.lines)
	assert.Equal(t, []string{"EC: 200.000u\r\n", "EC: 300.000u\r\n"}, b.lines)

	assert.ErrorIs(t, s.PrintReading(4), channel.ErrNoChannel)
	assert.Empty(t, s.History())
}

func TestPrintAll_ReportsFailingChannel(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), WithRecorder(rec))
	require.NoError(t, err)

	good := &console{}
	bad := channel.NewLCDKeypad("bad",
		func() (byte, bool, error) { return 0, false, nil },
		func(string) error { return io.ErrClosedPipe },
	)
	_, err = s.AttachChannel(bad)
	require.NoError(t, err)
	_, err = s.AttachChannel(good.channel("good"))
	require.NoError(t, err)

	err = s.PrintAll()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Len(t, good.lines, 1)
	assert.Equal(t, 1, rec.channelErrors)
}

func TestReport(t *testing.T) {
	p := customProfile(scripted(4), 5, 7)
	p.Slope = 0.5
	s, err := NewCustom(0, p)
	require.NoError(t, err)

	con := &console{}
	_, err = s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	v, err := s.Report()
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, []float64{2}, s.History())
	assert.Equal(t, []string{"Gauge: 2.000u\r\n"}, con.lines)
}

func TestStreamTest_CancelledWhileInputKeepsArriving(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), fastOptions()...)
	require.NoError(t, err)

	echoed := 0
	stuck := channel.NewLCDKeypad("stuck",
		func() (byte, bool, error) { return 'x', true, nil },
		func(string) error { echoed++; return nil },
	)
	idx, err := s.AttachChannel(stuck)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.StreamTest(ctx, idx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("stream test ignored cancellation")
	}
	assert.Positive(t, echoed)
}
