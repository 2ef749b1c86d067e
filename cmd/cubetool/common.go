package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/veritum-project/cube/cube"
)

// multiStringFlag collects repeated -recipient flags.
type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func parseType(s string) (cube.Type, error) {
	switch strings.ToUpper(s) {
	case "FROZEN":
		return cube.TypeFrozen, nil
	case "FROZEN_NOTIFY":
		return cube.TypeFrozenNotify, nil
	case "PIC":
		return cube.TypePic, nil
	case "PIC_NOTIFY":
		return cube.TypePicNotify, nil
	case "MUC":
		return cube.TypeMuc, nil
	case "MUC_NOTIFY":
		return cube.TypeMucNotify, nil
	case "PMUC":
		return cube.TypePmuc, nil
	case "PMUC_NOTIFY":
		return cube.TypePmucNotify, nil
	default:
		return 0, fmt.Errorf("unknown cube type %q", s)
	}
}

func parseHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("want 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func parseHexKey(s string) ([cube.HashSize]byte, error) {
	var out [cube.HashSize]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != cube.HashSize {
		return out, fmt.Errorf("want %d bytes, got %d", cube.HashSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
