package domain

import (
	"fmt"
	"strings"
)

type Split int

const (
	FirstStructure Split = iota + 1
	SecondStructure
	Blind
	EyeSpy
	EndEnter
	Finish
)

// AllSplits en orden de progreso del run.
var AllSplits = []Split{FirstStructure, SecondStructure, Blind, EyeSpy, EndEnter, Finish}

var splitCodes = map[Split]string{
	FirstStructure:  "FS",
	SecondStructure: "SS",
	Blind:           "B",
	EyeSpy:          "E",
	EndEnter:        "EE",
	Finish:          "F",
}

// Code es el prefijo que usan los nombres de roles (*FS2:3, *EE9:0, ...).
func (s Split) Code() string { return splitCodes[s] }

// SplitFromCode es el inverso de Code.
func SplitFromCode(code string) (Split, bool) {
	code = strings.ToUpper(code)
	for sp, c := range splitCodes {
		if c == code {
			return sp, true
		}
	}
	return 0, false
}

// Desc arma la descripción legible. label solo aplica a las estructuras
// ("Bastion" / "Fortress").
func (s Split) Desc(label string) string {
	switch s {
	case FirstStructure, SecondStructure:
		if label != "" {
			return label
		}
		if s == FirstStructure {
			return "First Structure"
		}
		return "Second Structure"
	case Blind:
		return "First Portal"
	case EyeSpy:
		return "Eye Spy"
	case EndEnter:
		return "End Enter"
	case Finish:
		return "Finish"
	}
	return "Unknown"
}

func (s Split) String() string {
	if c, ok := splitCodes[s]; ok {
		return c
	}
	return fmt.Sprintf("Split(%d)", int(s))
}

// MinsSecs parte los ms de IGT en minutos y segundos.
func MinsSecs(igtMillis int64) (uint32, uint32) {
	if igtMillis < 0 {
		igtMillis = 0
	}
	total := igtMillis / 1000
	return uint32(total / 60), uint32(total % 60)
}

// FormatIGT -> "mm:ss"
func FormatIGT(igtMillis int64) string {
	m, s := MinsSecs(igtMillis)
	return fmt.Sprintf("%02d:%02d", m, s)
}
