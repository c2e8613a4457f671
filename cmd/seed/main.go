package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/asterdex-mlm/internal/app"
	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"
	"github.com/asterdex-mlm/internal/service"
)

// demoMember 演示网络成员（sponsor 为空表示根节点）
type demoMember struct {
	username  string
	sponsor   string
	principal int64
}

var demoNetwork = []demoMember{
	{username: "root", principal: 5000},
	{username: "alice", sponsor: "root", principal: 1000},
	{username: "bob", sponsor: "root", principal: 2000},
	{username: "carol", sponsor: "alice", principal: 500},
	{username: "dave", sponsor: "alice", principal: 800},
	{username: "erin", sponsor: "bob", principal: 1200},
	{username: "frank", sponsor: "bob", principal: 300},
	{username: "grace", sponsor: "carol", principal: 650},
}

func main() {
	var accrue bool
	flag.BoolVar(&accrue, "accrue", false, "写入演示数据后执行一次当日收益")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := app.OpenDatabase(cfg.Database); err != nil {
		stdLog.Fatalf("Failed to prepare database: %v", err)
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		stdLog.Fatalf("Failed to init services: %v", err)
	}
	ctx := context.Background()

	ids := make(map[string]uint, len(demoNetwork))
	for _, item := range demoNetwork {
		existing, err := container.MemberRepo.GetByUsername(item.username)
		if err != nil {
			stdLog.Fatalf("Failed to load member %s: %v", item.username, err)
		}
		if existing != nil {
			ids[item.username] = existing.ID
			stdLog.Printf("Member already exists: %s", item.username)
			continue
		}
		result, err := container.MemberService.Enroll(ctx, service.EnrollInput{
			Username:  item.username,
			SponsorID: ids[item.sponsor],
		})
		if err != nil {
			stdLog.Fatalf("Failed to enroll %s: %v", item.username, err)
		}
		ids[item.username] = result.Member.ID
		stdLog.Printf("Enrolled %s (id=%d, position=%s)", item.username, result.Member.ID, result.Node.Position)
	}

	for _, item := range demoNetwork {
		purchase, err := container.PackageService.Purchase(ctx, service.CreatePackageInput{
			MemberID:  ids[item.username],
			Principal: models.NewMoneyFromInt(item.principal),
			Reference: fmt.Sprintf("seed-%s", item.username),
		})
		if err != nil {
			if errors.Is(err, service.ErrPrincipalBelowMinimum) {
				stdLog.Printf("Skipped package for %s: %v", item.username, err)
				continue
			}
			stdLog.Fatalf("Failed to purchase package for %s: %v", item.username, err)
		}
		if !purchase.Created {
			stdLog.Printf("Package already exists: seed-%s", item.username)
			continue
		}
		levelCredits, matchingCredits := 0, 0
		if purchase.Commission != nil {
			levelCredits = len(purchase.Commission.LevelCredits)
			matchingCredits = len(purchase.Commission.MatchingCredits)
		}
		stdLog.Printf("Package %d for %s: principal=%s level_credits=%d matching_credits=%d",
			purchase.Package.ID, item.username, purchase.Package.Principal.String(), levelCredits, matchingCredits)
	}

	if accrue {
		report, err := container.AccrualService.RunDailyAccrual(ctx, time.Now().In(container.Settings.Location))
		if err != nil {
			stdLog.Fatalf("Failed to run accrual: %v", err)
		}
		stdLog.Printf("Accrual %s: credited=%d total=%s", report.AsOf, report.Credited, report.TotalCredited.String())
	}

	stdLog.Println("Seed data completed")
}
