package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// EncryptorTestSuite is the test suite for Encryptor
type EncryptorTestSuite struct {
	suite.Suite
	encryptor *Encryptor
	validKey  string
}

func (suite *EncryptorTestSuite) SetupTest() {
	suite.validKey = "12345678901234567890123456789012" // 32 bytes
	var err error
	suite.encryptor, err = NewEncryptor(suite.validKey)
	suite.Require().NoError(err)
}

func TestEncryptorTestSuite(t *testing.T) {
	suite.Run(t, new(EncryptorTestSuite))
}

// TestNewEncryptor tests the Encryptor constructor
func (suite *EncryptorTestSuite) TestNewEncryptor_ValidKey() {
	key := "12345678901234567890123456789012" // 32 bytes
	enc, err := NewEncryptor(key)
	suite.NoError(err)
	suite.NotNil(enc)
}

func (suite *EncryptorTestSuite) TestNewEncryptor_InvalidKeyTooShort() {
	key := "shortkey"
	enc, err := NewEncryptor(key)
	suite.Error(err)
	suite.Nil(enc)
	suite.Contains(err.Error(), "32 bytes")
}

func (suite *EncryptorTestSuite) TestNewEncryptor_InvalidKeyTooLong() {
	key := "1234567890123456789012345678901234567890" // 40 bytes
	enc, err := NewEncryptor(key)
	suite.Error(err)
	suite.Nil(enc)
}

func (suite *EncryptorTestSuite) TestNewEncryptor_EmptyKey() {
	enc, err := NewEncryptor("")
	suite.Error(err)
	suite.Nil(enc)
}

// TestEncryptDecrypt tests the Encrypt and Decrypt methods
func (suite *EncryptorTestSuite) TestEncryptDecrypt_EmptyString() {
	plaintext := ""
	ciphertext, err := suite.encryptor.Encrypt(plaintext)
	suite.NoError(err)
	suite.NotEmpty(ciphertext)

	decrypted, err := suite.encryptor.Decrypt(ciphertext)
	suite.NoError(err)
	suite.Equal(plaintext, decrypted)
}

func (suite *EncryptorTestSuite) TestEncryptDecrypt_RoundTrip() {
	plaintext := "session blob with MTProto auth key material"
	ciphertext, err := suite.encryptor.Encrypt(plaintext)
	suite.NoError(err)
	suite.NotEqual(plaintext, ciphertext)

	decrypted, err := suite.encryptor.Decrypt(ciphertext)
	suite.NoError(err)
	suite.Equal(plaintext, decrypted)
}

func (suite *EncryptorTestSuite) TestEncrypt_UniqueNonce() {
	plaintext := "same input"
	first, err := suite.encryptor.Encrypt(plaintext)
	suite.NoError(err)
	second, err := suite.encryptor.Encrypt(plaintext)
	suite.NoError(err)
	suite.NotEqual(first, second)
}

func (suite *EncryptorTestSuite) TestDecrypt_WrongKey() {
	ciphertext, err := suite.encryptor.Encrypt("secret")
	suite.Require().NoError(err)

	other, err := NewEncryptor(strings.Repeat("x", 32))
	suite.Require().NoError(err)

	_, err = other.Decrypt(ciphertext)
	suite.Error(err)
}

func (suite *EncryptorTestSuite) TestDecrypt_Garbage() {
	_, err := suite.encryptor.Decrypt("not base64 at all !!!")
	suite.Error(err)

	_, err = suite.encryptor.Decrypt("YWJj") // valid base64, too short
	suite.Error(err)
}

func (suite *EncryptorTestSuite) TestEncryptDecrypt_Bytes() {
	blob := []byte{0x01, 0x02, 0xff, 0x00, 0x7f}
	ciphertext, err := suite.encryptor.EncryptBytes(blob)
	suite.NoError(err)

	decrypted, err := suite.encryptor.DecryptBytes(ciphertext)
	suite.NoError(err)
	suite.Equal(blob, decrypted)
}
