package prometheus

import (
	"context"
	"strings"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/prometheus/client_golang/prometheus"
)

// nopProvider accepts every call.
type nopProvider struct{}

func (nopProvider) SignUp(context.Context, goLogin.SignUpRequest) error { return nil }
func (nopProvider) ConfirmSignUp(context.Context, string, string) error { return nil }
func (nopProvider) SignIn(context.Context, string, string) (goLogin.SignInResult, error) {
	return goLogin.SignInResult{Complete: true}, nil
}
func (nopProvider) ResendSignUpCode(context.Context, string) (goLogin.DeliveryInfo, error) {
	return goLogin.DeliveryInfo{}, nil
}
func (nopProvider) ResetPassword(context.Context, string) (goLogin.DeliveryInfo, error) {
	return goLogin.DeliveryInfo{}, nil
}
func (nopProvider) ConfirmResetPassword(context.Context, string, string, string) error { return nil }
func (nopProvider) FetchSession(context.Context) (bool, error)                         { return false, nil }
func (nopProvider) CurrentUser(context.Context) (string, error)                        { return "", nil }
func (nopProvider) SignOut(context.Context) error                                      { return nil }

// singleCollector narrows a collector to one metric for testutil.ToFloat64.
type singleCollector struct {
	inner prometheus.Collector
	name  string
}

func onlyMetric(c prometheus.Collector, name string) prometheus.Collector {
	return singleCollector{inner: c, name: name}
}

func (s singleCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(s, ch)
}

func (s singleCollector) Collect(ch chan<- prometheus.Metric) {
	all := make(chan prometheus.Metric)
	go func() {
		s.inner.Collect(all)
		close(all)
	}()
	want := "fqName: \"" + s.name + "\""
	for m := range all {
		if strings.Contains(m.Desc().String(), want) {
			ch <- m
		}
	}
}
