package ports

import (
	"context"
	"log/slog"
	"time"
)

// callWithTimeout runs fn under a deadline and returns fallback if the deadline
// passes first, even when fn does not observe its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, port string, fallback T, fn func(context.Context) T) T {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("port call panicked", "port", port, "panic", r)
				done <- fallback
			}
		}()
		done <- fn(callCtx)
	}()

	select {
	case result := <-done:
		return result
	case <-callCtx.Done():
		slog.Warn("port call timed out", "port", port, "timeout", timeout, "error", callCtx.Err())
		return fallback
	}
}

type timeoutVerifier struct {
	inner   LandVerifier
	timeout time.Duration
}

func WithVerificationTimeout(inner LandVerifier, timeout time.Duration) LandVerifier {
	return &timeoutVerifier{inner: inner, timeout: timeout}
}

func (v *timeoutVerifier) VerifyLand(ctx context.Context, farmerID int64, surveyNumber string) LandVerification {
	return callWithTimeout(ctx, v.timeout, "verification", LandVerification{}, func(ctx context.Context) LandVerification {
		return v.inner.VerifyLand(ctx, farmerID, surveyNumber)
	})
}

type timeoutWeather struct {
	inner   WeatherProvider
	timeout time.Duration
}

func WithWeatherTimeout(inner WeatherProvider, timeout time.Duration) WeatherProvider {
	return &timeoutWeather{inner: inner, timeout: timeout}
}

// Rainfall returns no readings on timeout. Adjudication reads that as zero
// rainfall, i.e. a maximum payout, unless weather data is required.
func (w *timeoutWeather) Rainfall(ctx context.Context, district, state string, from, to time.Time) []RainfallReading {
	return callWithTimeout(ctx, w.timeout, "weather", []RainfallReading{}, func(ctx context.Context) []RainfallReading {
		readings := w.inner.Rainfall(ctx, district, state, from, to)
		if readings == nil {
			return []RainfallReading{}
		}
		return readings
	})
}

type timeoutGateway struct {
	inner   PaymentGateway
	timeout time.Duration
}

func WithPaymentTimeout(inner PaymentGateway, timeout time.Duration) PaymentGateway {
	return &timeoutGateway{inner: inner, timeout: timeout}
}

func (g *timeoutGateway) Pay(ctx context.Context, instruction PaymentInstruction) PaymentResult {
	fallback := PaymentResult{Success: false, FailureReason: "payment gateway did not respond in time"}
	return callWithTimeout(ctx, g.timeout, "payment", fallback, func(ctx context.Context) PaymentResult {
		return g.inner.Pay(ctx, instruction)
	})
}

type timeoutNotifier struct {
	inner   Notifier
	timeout time.Duration
}

func WithNotificationTimeout(inner Notifier, timeout time.Duration) Notifier {
	return &timeoutNotifier{inner: inner, timeout: timeout}
}

func (n *timeoutNotifier) Notify(ctx context.Context, userID int64, kind NotificationKind, payload map[string]any) {
	callWithTimeout(ctx, n.timeout, "notification", struct{}{}, func(ctx context.Context) struct{} {
		n.inner.Notify(ctx, userID, kind, payload)
		return struct{}{}
	})
}
