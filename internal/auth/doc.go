// Package auth stores provider credentials in the OS keyring and resolves
// secret references held in the config.
//
// A token value in config.yaml may be a literal credential or a reference:
//
//	keyring:<name>   secret stored with StoreSecret under <name>
//	env:<VAR>        value of environment variable VAR
//
// Rotation and session tracking operate on the stored string. Resolve turns
// the chosen value into the real secret right before it is exported to a
// shell or a child process.
//
// Secrets use the OS keyring (macOS Keychain, Windows Credential Manager,
// Linux Secret Service) via github.com/99designs/keyring. On Linux without a
// D-Bus session the encrypted file backend is used instead; its directory and
// passphrase come from LLMCTL_CREDENTIALS_DIR and LLMCTL_KEYRING_PASSWORD.
package auth
