package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	iface "FaceStabilityServer/interface"

	"gocv.io/x/gocv"
)

// DecodeFrame decodes an encoded image (JPEG, PNG, ...) into a frame.
func DecodeFrame(data []byte, rotation int) (iface.Frame, error) {
	if !iface.ValidRotation(rotation) {
		return iface.Frame{}, fmt.Errorf("invalid rotation %d", rotation)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return iface.Frame{}, err
	}
	defer mat.Close()
	if mat.Empty() {
		return iface.Frame{}, errors.New("decoded image is empty or unsupported format")
	}
	img, err := mat.ToImage()
	if err != nil {
		return iface.Frame{}, err
	}
	return iface.Frame{Image: img, Rotation: rotation}, nil
}

// DecodeBase64Frame accepts a base64 image, optionally as a data URL.
func DecodeBase64Frame(b64 string, rotation int) (iface.Frame, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return iface.Frame{}, err
	}
	return DecodeFrame(data, rotation)
}
