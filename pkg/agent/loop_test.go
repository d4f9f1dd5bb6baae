package agent

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janael-pinheiro/sos-agent/pkg/alert"
	"github.com/janael-pinheiro/sos-agent/pkg/display"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type scriptedSampler struct {
	snapshots []entities.SensorSnapshot
	next      int
}

func (s *scriptedSampler) Sample() entities.SensorSnapshot {
	snapshot := s.snapshots[s.next]
	if s.next < len(s.snapshots)-1 {
		s.next++
	}
	return snapshot
}

type recordingSink struct {
	frames [][]display.Line
}

func (r *recordingSink) Render(lines []display.Line) error {
	r.frames = append(r.frames, lines)
	return nil
}

type fakeChannel struct {
	startErr error
	active   bool
	starts   int
	stops    int
	steps    int
	closed   bool
}

func (f *fakeChannel) Start() error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeChannel) Stop() error {
	f.stops++
	f.active = false
	return nil
}

func (f *fakeChannel) IsActive() bool { return f.active }

func (f *fakeChannel) Step() error {
	f.steps++
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeConnection struct {
	state     entities.ConnectionState
	fault     error
	processed int
	closed    bool
}

func (f *fakeConnection) EnsureConnected(context.Context) entities.ConnectionState { return f.state }

func (f *fakeConnection) ProcessIncoming() int {
	f.processed++
	return 0
}

func (f *fakeConnection) State() entities.ConnectionState { return f.state }

func (f *fakeConnection) Fault() error { return f.fault }

func (f *fakeConnection) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	calls []entities.SensorSnapshot
}

func (f *fakePublisher) MaybePublish(_ context.Context, _ time.Time, snapshot entities.SensorSnapshot) bool {
	f.calls = append(f.calls, snapshot)
	return true
}

type captureDevice struct {
	bytes.Buffer
}

func (c *captureDevice) Close() error { return nil }

type brokenLED struct{}

func (brokenLED) Set(bool) error { return errors.New("write brightness: permission denied") }

func (brokenLED) On() bool { return false }

func writeClip(t *testing.T, size int) string {
	clip := filepath.Join(t.TempDir(), "siren.raw")
	require.NoError(t, os.WriteFile(clip, bytes.Repeat([]byte{0x7f}, size), 0o600))
	return clip
}

type loopSuite struct {
	suite.Suite
	sampler    *scriptedSampler
	sink       *recordingSink
	channel    *fakeChannel
	connection *fakeConnection
	publisher  *fakePublisher
	hook       *test.Hook
	loop       *Loop
}

func (s *loopSuite) SetupTest() {
	log, hook := test.NewNullLogger()
	s.hook = hook
	s.sampler = &scriptedSampler{}
	s.sink = &recordingSink{}
	s.channel = &fakeChannel{}
	s.connection = &fakeConnection{state: entities.Ready}
	s.publisher = &fakePublisher{}
	s.loop = NewLoop(LoopConfig{}, s.sampler, s.sink, alert.NewEngine(45), alert.Channels{s.channel},
		s.connection, s.publisher, nil, log.WithFields(logrus.Fields{"Context": "testing"}))
}

func (s *loopSuite) feed(humidity ...float64) {
	for _, h := range humidity {
		s.sampler.snapshots = append(s.sampler.snapshots, entities.NewSensorSnapshot(22.5, h, false))
	}
}

func (s *loopSuite) tick(n int) {
	for i := 0; i < n; i++ {
		s.Require().NoError(s.loop.Tick(context.Background(), time.Now()))
	}
}

func (s *loopSuite) TestGivenSustainedExcursionThenAlertStartsOnce() {
	s.feed(50, 55, 60, 40)

	s.tick(3)

	assert.Equal(s.T(), 1, s.channel.starts)
	assert.Equal(s.T(), 3, s.channel.steps)
	assert.True(s.T(), s.loop.AlertState().Triggered)

	s.tick(1)

	assert.Equal(s.T(), 1, s.channel.stops)
	assert.False(s.T(), s.loop.AlertState().Triggered)
}

func (s *loopSuite) TestGivenStartFailsThenRetriedNextTick() {
	s.feed(50)
	s.channel.startErr = errors.New("device busy")

	s.tick(1)

	assert.False(s.T(), s.loop.AlertState().Triggered)
	assert.Equal(s.T(), logrus.ErrorLevel, s.hook.LastEntry().Level)

	s.channel.startErr = nil
	s.tick(1)

	assert.Equal(s.T(), 2, s.channel.starts)
	assert.True(s.T(), s.loop.AlertState().Triggered)
}

func (s *loopSuite) TestGivenOneChannelFailsThenAlertRaisedAndOnlyFailedChannelRetried() {
	broken := &fakeChannel{startErr: errors.New("led write failed")}
	s.loop.channels = alert.Channels{s.channel, broken}
	s.feed(50)

	s.tick(2)

	assert.True(s.T(), s.loop.AlertState().Triggered)
	assert.Equal(s.T(), 1, s.channel.starts)
	assert.Equal(s.T(), 2, broken.starts)

	broken.startErr = nil
	s.tick(2)

	assert.Equal(s.T(), 3, broken.starts)
	assert.True(s.T(), broken.active)
	assert.Equal(s.T(), 1, s.channel.starts)
}

func (s *loopSuite) TestGivenBrokenIndicatorThenSirenPlaysClipOnce() {
	device := &captureDevice{}
	player, err := alert.NewFilePlayer(writeClip(s.T(), 40), device, 10)
	s.Require().NoError(err)
	s.loop.channels = alert.Channels{alert.NewAudioAlert(player), alert.NewIndicatorAlert(brokenLED{})}
	s.feed(60)

	s.tick(8)

	assert.Equal(s.T(), 40, device.Len())
	assert.True(s.T(), s.loop.AlertState().Triggered)
	assert.False(s.T(), player.IsPlaying())

	s.feed(40)
	s.tick(2)

	assert.False(s.T(), s.loop.AlertState().Triggered)
}

func (s *loopSuite) TestGivenInvalidSnapshotThenRetryRenderedAndNoAlert() {
	s.sampler.snapshots = []entities.SensorSnapshot{entities.NewSensorSnapshot(math.NaN(), 90, false)}

	s.tick(1)

	require.Len(s.T(), s.sink.frames, 1)
	assert.Equal(s.T(), "Unable to fetch temp/humidity readings, trying again", s.sink.frames[0][0].Text)
	assert.Equal(s.T(), 0, s.channel.starts)
}

func (s *loopSuite) TestGivenReadyThenIncomingProcessedAndPublisherConsulted() {
	s.feed(40)

	s.tick(2)

	assert.Equal(s.T(), 2, s.connection.processed)
	assert.Len(s.T(), s.publisher.calls, 2)
}

func (s *loopSuite) TestGivenReconnectingThenSamplingContinues() {
	s.connection.state = entities.SessionEstablishing
	s.feed(50)

	s.tick(2)

	assert.Equal(s.T(), 0, s.connection.processed)
	assert.Equal(s.T(), 1, s.channel.starts)
	assert.Len(s.T(), s.sink.frames, 2)
}

func (s *loopSuite) TestGivenFaultedThenErrorReportedOnceAndMonitoringContinues() {
	s.connection.state = entities.Faulted
	s.connection.fault = errors.Wrap(broker.ErrFaulted, "bad key")
	s.feed(50)

	first := s.loop.Tick(context.Background(), time.Now())
	second := s.loop.Tick(context.Background(), time.Now())

	assert.ErrorIs(s.T(), first, broker.ErrFaulted)
	assert.ErrorIs(s.T(), second, broker.ErrFaulted)
	assert.Equal(s.T(), 1, s.channel.starts)
	assert.Empty(s.T(), s.publisher.calls)
	errorEntries := 0
	for _, entry := range s.hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorEntries++
		}
	}
	assert.Equal(s.T(), 1, errorEntries)
	last := s.sink.frames[1][len(s.sink.frames[1])-1]
	assert.Equal(s.T(), display.Critical, last.Level)
}

func (s *loopSuite) TestRunStopsOnCancelAndReleasesResources() {
	s.feed(50)
	s.loop.conf = LoopConfig{Tick: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.loop.Run(ctx)

	assert.NoError(s.T(), err)
	assert.True(s.T(), s.channel.closed)
	assert.False(s.T(), s.channel.active)
	assert.True(s.T(), s.connection.closed)
}

func (s *loopSuite) TestRunReturnsFault() {
	s.feed(40)
	s.connection.state = entities.Faulted
	s.connection.fault = errors.Wrap(broker.ErrFaulted, "bad key")
	s.loop.conf = LoopConfig{Tick: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.loop.Run(ctx)

	assert.ErrorIs(s.T(), err, broker.ErrFaulted)
}

func TestLoopSuite(t *testing.T) {
	suite.Run(t, new(loopSuite))
}
