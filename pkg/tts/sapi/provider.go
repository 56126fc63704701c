// Package sapi implements synthesis through Windows SAPI5 via OLE. It is
// the offline last-resort backend: no network, no API key, system voices.
package sapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/google/uuid"

	"voxgate/pkg/tts"
)

// DefaultVoice selects whatever voice the system has configured.
const DefaultVoice = "system-default"

// Provider implements tts.Provider using Windows SAPI5 via OLE.
// SAPI COM objects are apartment-threaded, so calls are serialised.
type Provider struct {
	mu sync.Mutex
}

// NewProvider creates a SAPI5 provider.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) ID() string { return "windows-sapi" }

func (p *Provider) Capability() tts.Capability {
	return tts.Capability{
		Format: "wav",
		Voices: map[string]tts.VoiceInfo{
			DefaultVoice: {Language: "en"},
		},
		DefaultByLanguage: map[string]string{
			"en": DefaultVoice,
		},
	}
}

// Synthesize renders text to a WAV payload through a temporary SpFileStream.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, tts.NewTransientError("synthesis cancelled", err)
	}

	if err := ole.CoInitialize(0); err != nil {
		// Already initialized
	} else {
		defer ole.CoUninitialize()
	}

	unknown, err := oleutil.CreateObject("SAPI.SpVoice")
	if err != nil {
		return nil, tts.NewFatalError(0, fmt.Sprintf("failed to create SAPI.SpVoice: %v", err))
	}
	voice, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		unknown.Release()
		return nil, tts.NewFatalError(0, fmt.Sprintf("QueryInterface SpVoice failed: %v", err))
	}
	defer voice.Release()

	if req.Voice != "" && req.Voice != DefaultVoice {
		p.setVoiceByID(voice, req.Voice)
	}
	if req.Speed != 0 && req.Speed != 1.0 {
		// SAPI rate runs -10..10; map the multiplier onto that scale.
		rate := int32((req.Speed - 1.0) * 10)
		if rate > 10 {
			rate = 10
		} else if rate < -10 {
			rate = -10
		}
		_, _ = oleutil.PutProperty(voice, "Rate", rate)
	}

	unknownStream, err := oleutil.CreateObject("SAPI.SpFileStream")
	if err != nil {
		return nil, tts.NewFatalError(0, fmt.Sprintf("failed to create SAPI.SpFileStream: %v", err))
	}
	stream, err := unknownStream.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		unknownStream.Release()
		return nil, tts.NewFatalError(0, fmt.Sprintf("QueryInterface SpFileStream failed: %v", err))
	}
	defer stream.Release()

	tmpPath := filepath.Join(os.TempDir(), "voxgate-sapi-"+uuid.New().String()+".wav")
	defer os.Remove(tmpPath)

	_, err = oleutil.CallMethod(stream, "Open", tmpPath, 3, false)
	if err != nil {
		return nil, tts.NewTransientError("stream Open failed", err)
	}

	_, err = oleutil.PutPropertyRef(voice, "AudioOutputStream", stream)
	if err != nil {
		_, _ = oleutil.CallMethod(stream, "Close")
		return nil, tts.NewTransientError("failed to set AudioOutputStream", err)
	}

	_, err = oleutil.CallMethod(voice, "Speak", req.Text, 0)
	_, _ = oleutil.CallMethod(stream, "Close")
	if err != nil {
		tts.Log(p.ID(), req.Voice, req.Text, 0, err)
		return nil, tts.NewTransientError("Speak failed", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, tts.NewTransientError("failed to read rendered audio", err)
	}
	if len(data) == 0 {
		return nil, tts.NewTransientError("sapi produced empty audio", nil)
	}

	tts.Log(p.ID(), req.Voice, req.Text, 200, nil)
	return &tts.Audio{Data: data, Format: "wav"}, nil
}

// VoiceTokens lists the installed SAPI voice token IDs and descriptions.
func (p *Provider) VoiceTokens() (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ole.CoInitialize(0); err != nil {
	} else {
		defer ole.CoUninitialize()
	}

	unknown, err := oleutil.CreateObject("SAPI.SpVoice")
	if err != nil {
		return nil, err
	}
	voice, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		unknown.Release()
		return nil, err
	}
	defer voice.Release()

	tokensVar, err := oleutil.CallMethod(voice, "GetVoices")
	if err != nil {
		tokensVar, err = oleutil.GetProperty(voice, "Voices")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voices collection: %w", err)
	}
	tokens := tokensVar.ToIDispatch()
	if tokens == nil {
		return nil, fmt.Errorf("voices collection is nil")
	}
	defer tokens.Release()

	out := make(map[string]string)
	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()
		idVar, idErr := oleutil.CallMethod(item, "GetId")
		descVar, descErr := oleutil.CallMethod(item, "GetDescription", int32(0))
		if idErr == nil && descErr == nil && idVar != nil && descVar != nil {
			out[idVar.ToString()] = descVar.ToString()
		}
		return nil
	})
	return out, nil
}

// setVoiceByID switches the SpVoice to the token whose ID or description
// matches. Unknown IDs are ignored and the system default is used instead.
func (p *Provider) setVoiceByID(voice *ole.IDispatch, voiceID string) {
	tokensVar, err := oleutil.CallMethod(voice, "GetVoices", "", "")
	if err != nil {
		return
	}
	tokens := tokensVar.ToIDispatch()
	defer tokens.Release()

	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()
		idVar, _ := oleutil.CallMethod(item, "GetId")
		descVar, _ := oleutil.CallMethod(item, "GetDescription", int32(0))
		matched := (idVar != nil && idVar.ToString() == voiceID) ||
			(descVar != nil && strings.Contains(descVar.ToString(), voiceID))
		if matched {
			_, _ = oleutil.PutPropertyRef(voice, "Voice", item)
		}
		return nil
	})
}
