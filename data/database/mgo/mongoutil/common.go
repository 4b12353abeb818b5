package mongoutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	errs "PairLink/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

func buildMongoURI(config *Config, authSource string) string {
	credentials := ""

	if config.Username != "" && config.Password != "" {
		credentials = fmt.Sprintf("%s:%s", config.Username, config.Password)
	}

	return fmt.Sprintf(
		"mongodb://%s@%s/%s?authSource=%s&maxPoolSize=%d",
		credentials,
		strings.Join(config.Address, ","),
		config.Database,
		authSource,
		config.MaxPoolSize,
	)
}

// shouldRetry determines whether an error should trigger a retry.
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		if cmdErr, ok := err.(mongo.CommandError); ok {
			// 13 = Unauthorized, 18 = AuthenticationFailed
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}

// Classify maps driver errors onto the service taxonomy so the retry
// layer can tell transient failures from terminal ones.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errs.CodeOf(err) != 0 {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return errs.ErrOperationTimedOut.WrapMsg(err.Error())
	}
	if mongo.IsNetworkError(err) {
		return errs.ErrNetworkUnavailable.WrapMsg(err.Error())
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch {
		case cmdErr.Code == 13 || cmdErr.Code == 18:
			return errs.ErrPermissionDenied.WrapMsg(cmdErr.Message)
		case cmdErr.HasErrorLabel("TransientTransactionError"),
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult"):
			return errs.ErrBackendTransientFailure.WrapMsg(cmdErr.Message)
		}
	}
	return errs.Wrap(err)
}
