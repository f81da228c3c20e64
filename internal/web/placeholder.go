package web

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path"
	"strings"
)

// handlePlaceholder serves a generated pixel-art picture for scenes that
// have no image. URL shape: /placeholder/<sceneID>.png. The picture depends
// only on the scene id, so it is stable across visits.
func (s *Server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	base := path.Base(r.URL.Path)
	if path.Ext(base) != ".png" {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimSuffix(base, ".png")
	if id == "" || s.Doc.Scenes[id] == nil {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, placeholderImage(id)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypePNG)
	w.Header().Set("Cache-Control", assetCacheControl)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log().Debug("Placeholder write failed")
	}
}

// Dusk palette, 256x192 drawn in 8x8 blocks.
var (
	pixelBlack  = color.RGBA{0x18, 0x14, 0x28, 255}
	pixelSky    = color.RGBA{0x45, 0x2c, 0x5c, 255}
	pixelWater  = color.RGBA{0x2d, 0x3a, 0x5c, 255}
	pixelSand   = color.RGBA{0x8b, 0x73, 0x55, 255}
	pixelStone  = color.RGBA{0x55, 0x55, 0x66, 255}
	pixelGreen  = color.RGBA{0x2d, 0x5a, 0x3d, 255}
	pixelBright = color.RGBA{0x6b, 0x8c, 0x5a, 255}
	pixelWarm   = color.RGBA{0xc4, 0x6c, 0x32, 255}
)

const (
	blockPx          = 8
	imgW, imgH       = 256, 192
	blocksW, blocksH = imgW / blockPx, imgH / blockPx
)

type scenery int

const (
	sceneryFields scenery = iota
	sceneryForest
	sceneryRiver
	sceneryHills
	sceneryTown
	sceneryCave
	sceneryShore
	sceneryCount
)

type canvas struct{ img *image.RGBA }

func (c canvas) block(bx, by int, clr color.RGBA) {
	if bx < 0 || bx >= blocksW || by < 0 || by >= blocksH {
		return
	}
	for dy := 0; dy < blockPx; dy++ {
		for dx := 0; dx < blockPx; dx++ {
			c.img.SetRGBA(bx*blockPx+dx, by*blockPx+dy, clr)
		}
	}
}

// rows fills block rows [from, to) across the full width.
func (c canvas) rows(from, to int, clr color.RGBA) {
	for by := from; by < to; by++ {
		for bx := 0; bx < blocksW; bx++ {
			c.block(bx, by, clr)
		}
	}
}

// pickScenery hashes a scene id onto a layout and a horizon offset.
func pickScenery(id string) (scenery, int) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()
	return scenery(sum % uint32(sceneryCount)), int(sum>>8%3) - 1
}

func placeholderImage(id string) image.Image {
	c := canvas{img: image.NewRGBA(image.Rect(0, 0, imgW, imgH))}
	kind, shift := pickScenery(id)
	horizon := blocksH/3 + shift

	c.rows(0, blocksH, pixelBlack)
	switch kind {
	case sceneryForest:
		c.rows(0, horizon, pixelSky)
		c.rows(blocksH-2, blocksH, pixelGreen)
		for _, bx := range []int{3, 9, 16, 22, 27} {
			for by := blocksH - 4; by < blocksH-1; by++ {
				c.block(bx, by, pixelStone)
			}
			for dx := -1; dx <= 1; dx++ {
				for by := blocksH - 9; by < blocksH-4; by++ {
					c.block(bx+dx, by, pixelGreen)
				}
			}
			c.block(bx+1, blocksH-9, pixelBright)
		}
	case sceneryRiver:
		c.rows(0, horizon, pixelSky)
		c.rows(horizon, blocksH, pixelGreen)
		c.rows(blocksH/2, blocksH/2+4, pixelWater)
	case sceneryHills:
		c.rows(0, horizon, pixelSky)
		for band := 0; band < 4; band++ {
			top := blocksH - 2 - band*4
			if top < horizon {
				break
			}
			clr := pixelGreen
			if band%2 == 1 {
				clr = pixelBright
			}
			c.rows(top, top+2, clr)
		}
	case sceneryTown:
		c.rows(0, horizon, pixelSky)
		for i, bh := range []int{6, 4, 8, 5, 7} {
			bx := 2 + i*6
			for by := blocksH - bh; by < blocksH; by++ {
				for ww := 0; ww < 4; ww++ {
					c.block(bx+ww, by, pixelStone)
				}
			}
			for ww := 0; ww < 4; ww++ {
				c.block(bx+ww, blocksH-bh-1, pixelWarm)
			}
		}
	case sceneryCave:
		for i := 0; i < 5; i++ {
			bx := 4 + i*6
			for by := 0; by < blocksH; by++ {
				c.block(bx, by, pixelStone)
				c.block(bx+1, by, pixelStone)
			}
		}
		c.rows(blocksH-1, blocksH, pixelWarm)
	case sceneryShore:
		c.rows(0, horizon, pixelSky)
		c.rows(blocksH-6, blocksH-4, pixelWater)
		c.rows(blocksH-4, blocksH, pixelSand)
	default:
		c.rows(0, blocksH/2+shift, pixelSky)
		c.rows(blocksH/2+shift, blocksH, pixelGreen)
		for bx := 4; bx < blocksW-4; bx++ {
			c.block(bx, blocksH-3, pixelSand)
		}
	}
	return c.img
}
