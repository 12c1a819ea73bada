package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"

	"hit/internal/model"
)

// Raw speech from the API: 16-bit little-endian PCM, mono, 24 kHz.
const (
	SpeechSampleRate    = 24000
	SpeechChannels      = 1
	SpeechBitsPerSample = 16
)

var speechTemplates = map[model.SpeechSpeed]*fasttemplate.Template{
	model.SpeedNormal: fasttemplate.New("Speak clearly at a steady pace for handwriting practice: {{text}}", "{{", "}}"),
	model.SpeedFast:   fasttemplate.New("Speak clearly but quickly, like a fast dictation: {{text}}", "{{", "}}"),
}

// SynthesizeSpeech returns the dictation audio as raw PCM samples.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string, speed model.SpeechSpeed) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	tpl, ok := speechTemplates[speed]
	if !ok {
		tpl = speechTemplates[model.SpeedNormal]
	}

	resp, err := c.generate(ctx, c.speechModel, generateRequest{
		Contents: []content{{Parts: []part{{Text: tpl.ExecuteString(map[string]interface{}{"text": text})}}}},
		GenerationConfig: map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": c.voice},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	data, err := candidateInlineData(resp)
	if err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data.Data))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidResponse, "decode audio: %v", err)
	}
	if len(audio) == 0 {
		return nil, errors.Wrap(ErrInvalidResponse, "empty audio")
	}
	return audio, nil
}

// PCMToWAV wraps raw speech samples in a RIFF/WAVE container.
func PCMToWAV(pcm []byte) []byte {
	const headerSize = 44
	blockAlign := SpeechChannels * SpeechBitsPerSample / 8
	byteRate := SpeechSampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(SpeechChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(SpeechSampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(SpeechBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
