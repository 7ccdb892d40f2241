package ppu

import (
	"bytes"
	"encoding/gob"
)

type snapshot struct {
	VRAM                                     [0x2000]byte
	OAM                                      [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC             byte
	BGP, OBP0, OBP1, WY, WX                   byte
	Dot                                       int
	WinLine                                   int
	Framebuffer                               [160 * 144]byte
	FrameReady                                bool
}

// SaveState gob-encodes all PPU-owned state, including VRAM/OAM and the
// in-progress framebuffer, so a restored session resumes mid-frame.
func (p *PPU) SaveState() []byte {
	s := snapshot{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WinLine: p.winLine,
		Framebuffer: p.framebuffer, FrameReady: p.frameReady,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.winLine = s.Dot, s.WinLine
	p.framebuffer, p.frameReady = s.Framebuffer, s.FrameReady
}
