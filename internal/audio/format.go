package audio

import (
	"fmt"

	"moodvox/internal/fault"
	"moodvox/pkg/audioconv"
)

type Format struct {
	MIME      string
	Extension string
}

var (
	FormatWebmOpus = Format{MIME: "audio/webm;codecs=opus", Extension: "webm"}
	FormatOggOpus  = Format{MIME: "audio/ogg;codecs=opus", Extension: "ogg"}
	FormatWAV      = Format{MIME: "audio/wav", Extension: "wav"}
)

// PreferredFormats is the capture format preference, best first.
var PreferredFormats = []Format{
	FormatWebmOpus,
	FormatOggOpus,
	FormatWAV,
}

// Encoder turns mono PCM16 samples into a container of its Format.
type Encoder func(pcm []int16, sampleRate int) ([]byte, error)

// Encoders lists the containers this build can produce.
var Encoders = map[string]Encoder{
	FormatWAV.MIME: audioconv.EncodeWAV,
}

// Negotiate returns the first entry of prefs accepted by supported.
func Negotiate(prefs []Format, supported func(Format) bool) (Format, error) {
	for _, f := range prefs {
		if supported(f) {
			return f, nil
		}
	}
	return Format{}, fault.New(fault.FormatUnsupported, "negotiate", fmt.Sprintf("none of %d formats supported", len(prefs)))
}

func HasEncoder(f Format) bool {
	_, ok := Encoders[f.MIME]
	return ok
}
