package mic

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"

	"moodvox/internal/fault"
)

func TestMapPortAudioError(t *testing.T) {
	cases := []struct {
		err  error
		want *fault.Error
	}{
		{portaudio.InvalidDevice, fault.ErrDeviceUnavailable},
		{portaudio.DeviceUnavailable, fault.ErrDeviceUnavailable},
		{portaudio.InvalidSampleRate, fault.ErrFormatUnsupported},
		{portaudio.InvalidChannelCount, fault.ErrFormatUnsupported},
		{errors.New("ALSA: Permission denied"), fault.ErrPermissionDenied},
		{errors.New("something odd"), fault.ErrDeviceUnavailable},
	}

	for _, tc := range cases {
		if got := mapPortAudioError("mic.open", tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%v: expected %v, got %v", tc.err, tc.want.Kind, got)
		}
	}
}

func TestMonoDownmix(t *testing.T) {
	s := &portAudioStream{buf: []float32{0.2, 0.4, -1, 1}, channels: 2}
	got := s.mono()
	if len(got) != 2 || got[0] < 0.29 || got[0] > 0.31 || got[1] != 0 {
		t.Fatalf("got %v", got)
	}
}
