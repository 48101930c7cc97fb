package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/illarion/keylock/internal/config"
	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/keystore"
	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/pubkey"
)

// EnvNewPassword supplies the new password to 'keylock passwd' when stdin
// is not a terminal
const EnvNewPassword = "KEYLOCK_NEW_PASSWORD"

// isTerminal reports whether prompts can be shown
var isTerminal = core.IsTerminal

// openStore opens the store selected by the loaded settings
func openStore() (*core.KeyLock, error) {
	return core.Open(settings)
}

// getPassword reads the password from the unlock environment variable or
// prompts for it. The caller clears the returned bytes.
func getPassword(prompt string) ([]byte, error) {
	if password := core.GetPasswordFromEnv(settings.AutoUnlockEnv); password != nil {
		return password, nil
	}
	if !isTerminal() {
		return nil, masterkey.ErrPasswordRequired
	}
	return core.ReadPassword(prompt)
}

// getNewPassword reads a password to set, asking twice on a terminal
func getNewPassword(envName, prompt string) ([]byte, error) {
	if password := core.GetPasswordFromEnv(envName); password != nil {
		return password, nil
	}
	if !isTerminal() {
		return nil, masterkey.ErrPasswordRequired
	}
	return core.ReadPasswordConfirm(prompt)
}

// ensureUnlocked unlocks k, first through the automatic sources, then by
// asking for the password
func ensureUnlocked(k *core.KeyLock) error {
	if k.Unlocked() {
		return nil
	}
	if !k.Initialized() {
		return core.ErrNotInitialized
	}

	password, err := getPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(password)

	return k.Unlock(string(password))
}

// readSecret reads one line from in, hiding input on a terminal
func readSecret(in io.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && f == os.Stdin && isTerminal() {
		secret, err := core.ReadPassword(prompt)
		if err != nil {
			return "", err
		}
		defer crypto.ClearBytes(secret)
		return strings.TrimSpace(string(secret)), nil
	}

	return readLine(in)
}

// readLine reads one trimmed line from in
func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// errorHint returns the message shown for err and an optional hint
func errorHint(err error) (string, string) {
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		return "keylock not initialized", "Run 'keylock init' first"
	case errors.Is(err, core.ErrAlreadyExists):
		return "keylock already initialized", "Use 'keylock status' to see current state"
	case errors.Is(err, masterkey.ErrWrongPassword):
		return "wrong password", ""
	case errors.Is(err, masterkey.ErrPasswordRequired):
		return "password required", fmt.Sprintf("Run on a terminal or set $%s", settings.AutoUnlockEnv)
	case errors.Is(err, masterkey.ErrStoreLocked):
		return "store is locked", "Run 'keylock unlock' or set the unlock environment variable"
	case errors.Is(err, keystore.ErrKeyNotFound):
		return "key not found", "Use 'keylock keys ls' to list stored public keys"
	case errors.Is(err, keystore.ErrKeyAlreadyInStore):
		return "key already in store", ""
	case errors.Is(err, keystore.ErrInvalidWIF), errors.Is(err, pubkey.ErrInvalidWIF):
		return "invalid WIF private key", ""
	case errors.Is(err, keystore.ErrKeyMismatch):
		return "public key does not match private key", ""
	case errors.Is(err, pubkey.ErrInvalidPublicKey):
		return "invalid public key", fmt.Sprintf("Public keys start with %s", settings.Prefix)
	case errors.Is(err, core.ErrProtectedKey):
		return fmt.Sprintf("%s is managed by keylock", masterkey.ConfigKey), "Use 'keylock passwd' to change the password"
	case errors.Is(err, core.ErrUnsupported):
		return err.Error(), fmt.Sprintf("Only the %s backend supports this", config.BackendBolt)
	default:
		return err.Error(), ""
	}
}

// HandleError prints err with a hint and exits
func HandleError(err error) {
	msg, hint := errorHint(err)
	fmt.Fprintln(os.Stderr, errorText("Error: ")+msg)
	if hint != "" {
		fmt.Fprintln(os.Stderr, muted(hint))
	}
	os.Exit(1)
}
