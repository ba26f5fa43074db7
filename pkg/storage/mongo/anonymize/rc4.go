package anonymize

import "crypto/rc4"

// xorRC4 both encrypts and decrypts, rc4 being a plain keystream.
func xorRC4(key []byte, in []byte) ([]byte, error) {
	if cipher, err := rc4.NewCipher(key); err != nil {
		return nil, err
	} else {
		out := make([]byte, len(in))
		cipher.XORKeyStream(out, in)
		return out, nil
	}
}
