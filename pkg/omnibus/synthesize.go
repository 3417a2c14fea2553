package omnibus

import (
	"fmt"

	"sarseq/internal/models"
)

// Synthesize derives the four change maps from the populated p-value
// matrix. The traversal is a sequential confirm-and-advance tracker: each
// pixel is latched onto its most recently confirmed change boundary (cmap),
// and only intervals starting at that boundary can advance it. The nesting
// order is therefore load-bearing: ell ascends in the outer loop and j
// ascends from ell in the inner loop, because later iterations depend on
// cmap values written by earlier ones.
//
// Per entry (ell, j) and pixel:
//
//	hit      = pv <= significance && cmap == ell
//	firstHit = pv <= significance && cmap == 0
//	fmap[hit]++ ; cmap[hit] = j+1 ; bmap[hit][j] = 255 ; smap[firstHit] = j+1
//
// fmap counts every confirmed boundary the pixel passes through. smap
// tracks the latest significant interval end while cmap is still zero, so
// for pixels that are never confirmed it holds the last provisional change
// rather than staying clear.
func (d *Detector) Synthesize() (*models.ChangeMaps, error) {
	k := len(d.stack)
	maps := models.NewChangeMaps(d.cols, d.rows, k)
	sig := d.params.Significance

	for ell := 0; ell < k-1; ell++ {
		for j := ell; j < k-1; j++ {
			pv, err := d.store.Get(ell, j)
			if err != nil {
				return nil, fmt.Errorf("p-value matrix incomplete: %w", err)
			}
			cmap, smap, fmap := maps.CMap, maps.SMap, maps.FMap
			bj := maps.BMap[j]
			mark := uint8(j + 1)
			for i, v := range pv {
				if v > sig {
					continue
				}
				if cmap[i] == uint8(ell) {
					fmap[i]++
					if cmap[i] == 0 {
						smap[i] = mark
					}
					cmap[i] = mark
					bj[i] = 255
				} else if cmap[i] == 0 {
					smap[i] = mark
				}
			}
		}
	}
	return maps, nil
}
