package testdata

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// CreateTestMealImage renders a plate-like JPEG for upload tests.
func CreateTestMealImage() []byte {
	width, height := 640, 480
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{245, 240, 230, 255})
		}
	}

	// a round "plate" with a blob of "food" in the middle
	cx, cy, r := width/2, height/2, 180
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			d2 := dx*dx + dy*dy
			if d2 < r*r {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
			if d2 < (r/2)*(r/2) {
				img.Set(x, y, color.RGBA{180, 120, 60, 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CreateTestMenuImage renders a menu-like PNG: dark lines on white, like
// rows of printed text.
func CreateTestMenuImage() []byte {
	width, height := 600, 800
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	for line := 0; line < 20; line++ {
		y := 60 + line*36
		for x := 40; x < width-40; x++ {
			if x%90 < 70 { // word-like gaps
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
				img.Set(x, y+1, color.RGBA{20, 20, 20, 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
