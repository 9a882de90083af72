package wt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/RokerHRO/wt/internal"
	"github.com/RokerHRO/wt/internal/stores"
)

// SetRememberMeCookie mints a new remember-me token series for the user and
// returns the cookie the embedding application should set. The cookie value
// is a signed JWT binding the user to the series; only a SHA-256 hash of
// the series secret is stored server-side.
func (c *Controller) SetRememberMeCookie(ctx context.Context, user User) (RememberCookie, error) {
	if c.cookieSigner == nil {
		return RememberCookie{}, ErrRememberMeDisabled
	}
	if !user.Valid() {
		return RememberCookie{}, ErrInvalidUser
	}

	series, err := internal.NewSeriesID()
	if err != nil {
		return RememberCookie{}, err
	}
	secret, err := internal.NewTokenSecret()
	if err != nil {
		return RememberCookie{}, err
	}

	ttl := c.config.RememberMe.TTL
	expires := c.now().Add(ttl)

	record := &stores.RememberRecord{
		UserID:     user.ID,
		SecretHash: internal.HashTokenSecret(secret),
		ExpiresAt:  expires.Unix(),
	}
	if err := c.rememberStore.Save(ctx, series.String(), record, ttl); err != nil {
		return RememberCookie{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	secretStr := base64.RawURLEncoding.EncodeToString(secret[:])
	value, err := c.cookieSigner.CreateRemember(user.ID, series.String(), secretStr, expires)
	if err != nil {
		return RememberCookie{}, err
	}

	c.metrics.Inc(MetricRememberIssued)
	c.emitAudit(ctx, auditEventRememberIssued, true, user, nil, map[string]string{
		"series": series.String(),
	})

	return c.cookie(value, expires), nil
}

// ProcessAuthToken consumes a remember-me cookie value. A missing, garbled,
// expired, or revoked token is not an error: the zero [User] with a nil
// error means "proceed without an identified user". Infrastructure failures
// do return an error, wrapped in [ErrStoreUnavailable].
//
// With rotation enabled the returned cookie replaces the presented one; a
// presented secret that is stale for a live series is treated as theft and
// kills the whole series.
func (c *Controller) ProcessAuthToken(ctx context.Context, value string) (User, *RememberCookie, error) {
	if c.cookieSigner == nil {
		return User{}, nil, ErrRememberMeDisabled
	}
	if value == "" {
		return User{}, nil, nil
	}

	claims, err := c.cookieSigner.ParseRemember(value)
	if err != nil {
		c.rejectToken(ctx, "", "bad_envelope")
		return User{}, nil, nil
	}

	secretRaw, err := base64.RawURLEncoding.DecodeString(claims.Secret)
	if err != nil || len(secretRaw) != internal.TokenSecretSize {
		c.rejectToken(ctx, claims.UID, "bad_secret_encoding")
		return User{}, nil, nil
	}
	providedHash := internal.HashTokenBytes(secretRaw)

	rotate := c.config.RememberMe.RotateOnUse
	var nextSecret [internal.TokenSecretSize]byte
	if rotate {
		nextSecret, err = internal.NewTokenSecret()
		if err != nil {
			return User{}, nil, err
		}
	}

	record, err := c.rememberStore.CheckAndRotate(
		ctx, claims.Series, claims.UID,
		providedHash, internal.HashTokenSecret(nextSecret),
		rotate,
	)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrRememberNotFound),
			errors.Is(err, stores.ErrRememberExpired):
			c.rejectToken(ctx, claims.UID, "unknown_series")
			return User{}, nil, nil
		case errors.Is(err, stores.ErrRememberSecretMismatch):
			// Theft signature: the store already revoked the series.
			c.rejectToken(ctx, claims.UID, "secret_reuse")
			return User{}, nil, nil
		default:
			return User{}, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if record.UserID != claims.UID {
		if rerr := c.rememberStore.RevokeSeries(ctx, claims.Series, record.UserID); rerr != nil {
			log.Printf("wt: revoke mismatched series: %v", rerr)
		}
		c.rejectToken(ctx, claims.UID, "user_mismatch")
		return User{}, nil, nil
	}

	user, err := c.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Account deleted since issuance; the series is dead weight.
			if rerr := c.rememberStore.RevokeSeries(ctx, claims.Series, record.UserID); rerr != nil {
				log.Printf("wt: revoke orphaned series: %v", rerr)
			}
			c.rejectToken(ctx, claims.UID, "user_gone")
			return User{}, nil, nil
		}
		return User{}, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	c.emitAudit(ctx, auditEventRememberConsumed, true, user, nil, map[string]string{
		"series": claims.Series,
	})

	if !rotate {
		return user, nil, nil
	}

	expires := time.Unix(record.ExpiresAt, 0)
	nextSecretStr := base64.RawURLEncoding.EncodeToString(nextSecret[:])
	nextValue, err := c.cookieSigner.CreateRemember(user.ID, claims.Series, nextSecretStr, expires)
	if err != nil {
		return User{}, nil, err
	}

	c.metrics.Inc(MetricRememberRotated)
	cookie := c.cookie(nextValue, expires)
	return user, &cookie, nil
}

// RevokeRememberTokens invalidates every remember-me series of the user,
// e.g. after a password change.
func (c *Controller) RevokeRememberTokens(ctx context.Context, user User) error {
	if !user.Valid() {
		return ErrInvalidUser
	}

	revoked, err := c.rememberStore.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if revoked > 0 {
		c.metrics.Inc(MetricRememberRevoked)
	}
	c.emitAudit(ctx, auditEventRememberRevoked, true, user, nil, map[string]string{
		"series_count": fmt.Sprintf("%d", revoked),
	})
	return nil
}

func (c *Controller) cookie(value string, expires time.Time) RememberCookie {
	return RememberCookie{
		Name:     c.config.RememberMe.CookieName,
		Value:    value,
		Domain:   c.config.RememberMe.CookieDomain,
		Path:     c.config.RememberMe.CookiePath,
		Expires:  expires,
		Secure:   true,
		HTTPOnly: true,
	}
}

func (c *Controller) rejectToken(ctx context.Context, uid, reason string) {
	c.metrics.Inc(MetricRememberRejected)
	c.emitAudit(ctx, auditEventRememberConsumed, false, User{ID: uid}, ErrInvalidCredentials, map[string]string{
		"reason": reason,
	})
}
