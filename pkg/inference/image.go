package inference

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
)

// EncodeImageBase64 encodes an image to base64 JPEG.
func EncodeImageBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// imageDataURL returns the data URL for the request's frame.
func imageDataURL(req *VisionRequest) (string, error) {
	var b64 string
	switch {
	case req.Image != nil:
		s, err := EncodeImageBase64(req.Image)
		if err != nil {
			return "", err
		}
		b64 = s
	case len(req.JPEG) > 0:
		b64 = base64.StdEncoding.EncodeToString(req.JPEG)
	default:
		return "", ErrNoImage
	}
	return "data:image/jpeg;base64," + b64, nil
}
