package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
	"github.com/carlosrabelo/nxproxy/domain/ports"
)

// DefaultHashAlgorithm is used when SetPassword gets no algorithm
const DefaultHashAlgorithm = "sha256"

// hashAlgorithms maps crypt(3) ids to algorithm names
var hashAlgorithms = map[string]string{
	"1": "md5",
	"5": "sha256",
	"6": "sha512",
}

var (
	passwordHashRegex = regexp.MustCompile(`(\$[0-6](?:\$[^$ ]+)+)`)
	hashPartsRegex    = regexp.MustCompile(`^\$([0-6])\$([^$]+)\$(.*)$`)
	rolesRegex        = regexp.MustCompile(`(?m)^\s*roles:(.*)$`)
)

// PasswordOptions tune SetPassword and UnlockPassword
type PasswordOptions struct {
	// Encrypted means the password is already a crypt(3) hash
	Encrypted bool
	Role      string
	Salt      string
	Algorithm string
	Save      *bool
}

// Users manages local user accounts
type Users struct {
	dispatcher *Dispatcher
	applier    *ConfigApplier
	hasher     ports.PasswordHasher
}

func NewUsers(dispatcher *Dispatcher, applier *ConfigApplier, hasher ports.PasswordHasher) *Users {
	return &Users{dispatcher: dispatcher, applier: applier, hasher: hasher}
}

// GetUser returns the username line of running-config, or "" when the user
// does not exist
func (u *Users) GetUser(ctx context.Context, username string) (string, error) {
	command := fmt.Sprintf(`show run | include "^username %s password 5 "`, username)
	out, err := u.dispatcher.Sendline(ctx, command, string(entities.ModeShowASCII))
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return strings.TrimSpace(cast.ToString(out[0])), nil
}

// GetRoles lists the roles assigned to a user
func (u *Users) GetRoles(ctx context.Context, username string) ([]string, error) {
	line, err := u.GetUser(ctx, username)
	if err != nil || line == "" {
		return []string{}, err
	}
	out, err := u.dispatcher.Sendline(ctx, "show user-account "+username, string(entities.ModeShowASCII))
	if err != nil {
		return nil, err
	}
	roles := []string{}
	for _, item := range out {
		for _, match := range rolesRegex.FindAllStringSubmatch(cast.ToString(item), -1) {
			roles = append(roles, strings.Fields(match[1])...)
		}
	}
	return lo.Uniq(roles), nil
}

// CheckRole reports whether the user holds role
func (u *Users) CheckRole(ctx context.Context, username, role string) (bool, error) {
	roles, err := u.GetRoles(ctx, username)
	if err != nil {
		return false, err
	}
	return lo.Contains(roles, role), nil
}

// CheckPassword compares password with the stored hash. It returns nil when
// the user does not exist and false when the account is locked.
func (u *Users) CheckPassword(ctx context.Context, username, password string, encrypted bool) (*bool, error) {
	line, err := u.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, nil
	}
	if strings.Contains(line, "!") {
		return lo.ToPtr(false), nil
	}
	current := passwordHashRegex.FindString(line)
	if current == "" {
		return lo.ToPtr(false), nil
	}
	if encrypted {
		return lo.ToPtr(password == current), nil
	}
	parts := hashPartsRegex.FindStringSubmatch(current)
	if len(parts) < 4 {
		return lo.ToPtr(false), nil
	}
	algorithm, ok := hashAlgorithms[parts[1]]
	if !ok {
		return lo.ToPtr(false), nil
	}
	hashed, err := u.hasher.Hash(password, parts[2], algorithm)
	if err != nil {
		return nil, err
	}
	return lo.ToPtr(hashed == current), nil
}

// SetPassword configures the user's password, hashing it unless it is
// already encrypted
func (u *Users) SetPassword(ctx context.Context, username, password string, opts PasswordOptions) (*entities.ConfigReport, error) {
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = DefaultHashAlgorithm
	}
	if algorithm == "blowfish" {
		return nil, &nxerrors.UsageError{Message: "Hash algorithm requested isn't available on nxos"}
	}
	hashed := password
	if !opts.Encrypted {
		var err error
		if hashed, err = u.hasher.Hash(password, opts.Salt, algorithm); err != nil {
			return nil, err
		}
	}
	line := fmt.Sprintf("username %s password 5 %s", username, hashed)
	if opts.Role != "" {
		line += " role " + opts.Role
	}
	return u.applier.AddConfig(ctx, line, opts.Save)
}

// LockPassword locks the account unless it is already locked
func (u *Users) LockPassword(ctx context.Context, username string, save *bool) (*entities.ConfigReport, error) {
	line, err := u.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if strings.Contains(line, "!") {
		return nil, nil
	}
	return u.applier.AddConfig(ctx, lockLine(username), save)
}

// UnlockPassword sets a new password on a locked account
func (u *Users) UnlockPassword(ctx context.Context, username, password string, opts PasswordOptions) (*entities.ConfigReport, error) {
	line, err := u.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(line, "!") {
		return nil, nil
	}
	return u.SetPassword(ctx, username, password, opts)
}

// DelPassword locks the account regardless of its current state
func (u *Users) DelPassword(ctx context.Context, username string, save *bool) (*entities.ConfigReport, error) {
	return u.applier.AddConfig(ctx, lockLine(username), save)
}

func lockLine(username string) string {
	return fmt.Sprintf("username %s password 5 !", username)
}

func (u *Users) SetRole(ctx context.Context, username, role string, save *bool) (*entities.ConfigReport, error) {
	return u.applier.AddConfig(ctx, fmt.Sprintf("username %s role %s", username, role), save)
}

func (u *Users) UnsetRole(ctx context.Context, username, role string, save *bool) (*entities.ConfigReport, error) {
	return u.applier.AddConfig(ctx, fmt.Sprintf("no username %s role %s", username, role), save)
}

func (u *Users) RemoveUser(ctx context.Context, username string, save *bool) (*entities.ConfigReport, error) {
	return u.applier.AddConfig(ctx, "no username "+username, save)
}
